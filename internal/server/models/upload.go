// Package models defines server-side data models persisted in the database.
package models

// Upload is one ledger row: the public identifier of a stored blob and the
// hashed secret that authorises its deletion. Rows are never updated.
type Upload struct {
	// FileStem is the random part of the public name.
	FileStem string
	// FileExtension is lowercased and may be empty.
	FileExtension string
	// DeletionSecretHash is a self-describing digest, see cryptox.
	DeletionSecretHash string
}

// Filename is the blob name: "stem" or "stem.ext".
func (u *Upload) Filename() string {
	return Filename(u.FileStem, u.FileExtension)
}

func Filename(stem, ext string) string {
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}
