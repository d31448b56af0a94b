// Package uploads is the upload ledger: the table mapping a public
// identifier (stem, extension) to the hash of its deletion secret.
package uploads

import (
	"context"

	"github.com/dmitrijs2005/dekinai/internal/server/models"
)

// Repository is implemented per SQL dialect. The composite key
// (file_stem, file_extension) is unique; Reserve is the only write that can
// race and it is a single constrained insert.
type Repository interface {
	// Reserve inserts the row and reports whether it won the key. A taken
	// key is (false, nil).
	Reserve(ctx context.Context, u *models.Upload) (bool, error)

	// GetSecretHash returns common.ErrorNotFound when no row exists.
	GetSecretHash(ctx context.Context, stem, ext string) (string, error)

	// Delete is idempotent.
	Delete(ctx context.Context, stem, ext string) error
}
