package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dekinai/internal/common"
	"github.com/dmitrijs2005/dekinai/internal/dbx"
	"github.com/dmitrijs2005/dekinai/internal/server/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Reserve(ctx context.Context, u *models.Upload) (bool, error) {
	query :=
		`INSERT INTO uploads (file_stem, file_extension, deletion_secret_hash)
		 VALUES (?, ?, ?)
		 ON CONFLICT (file_stem, file_extension) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, u.FileStem, u.FileExtension, u.DeletionSecretHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}

func (r *SQLiteRepository) GetSecretHash(ctx context.Context, stem, ext string) (string, error) {
	query :=
		`SELECT deletion_secret_hash FROM uploads
		 WHERE file_stem = ? AND file_extension = ?
		 `

	var hash string
	err := r.db.QueryRowContext(ctx, query, stem, ext).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return hash, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, stem, ext string) error {
	query :=
		`DELETE FROM uploads
		 WHERE file_stem = ? AND file_extension = ?
		 `

	if _, err := r.db.ExecContext(ctx, query, stem, ext); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
