package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/dekinai/internal/dbx"
	"github.com/dmitrijs2005/dekinai/internal/logging"
	"github.com/dmitrijs2005/dekinai/internal/server/migrations"
	"github.com/dmitrijs2005/dekinai/internal/server/repositories/uploads"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	logger logging.Logger
}

// Uploads returns an uploads.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Uploads(db dbx.DBTX) uploads.Repository {
	return uploads.NewPostgresRepository(db)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(m.logger, "pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, migrations.DirPostgres)
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB, logger logging.Logger) (RepositoryManager, error) {
	return &PostgresRepositoryManager{logger: logger}, nil
}
