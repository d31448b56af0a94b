// Package storage holds uploaded blobs. A blob is addressed by its public
// filename ("stem" or "stem.ext"); callers validate names before use.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"
)

var ErrInvalidName = errors.New("invalid blob name")

// Store is implemented by LocalStore and S3Store.
type Store interface {
	// Exists reports whether a blob is visible under name.
	Exists(ctx context.Context, name string) (bool, error)

	// Create opens a writer for name. Nothing is guaranteed visible until
	// Commit succeeds; Abort discards whatever was written.
	Create(ctx context.Context, name string) (Writer, error)

	// Open returns common.ErrorNotFound for a missing blob.
	Open(ctx context.Context, name string) (*Object, error)

	// Remove deletes the blob; a missing blob is not an error.
	Remove(ctx context.Context, name string) error
}

type Writer interface {
	io.Writer
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Object is an open blob. The caller closes Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return ErrInvalidName
	}
	return nil
}
