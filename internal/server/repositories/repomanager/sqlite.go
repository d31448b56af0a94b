package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/dekinai/internal/dbx"
	"github.com/dmitrijs2005/dekinai/internal/logging"
	"github.com/dmitrijs2005/dekinai/internal/server/migrations"
	"github.com/dmitrijs2005/dekinai/internal/server/repositories/uploads"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager vends SQLite-backed repositories. It is the
// default: a single file next to the uploads, no server to run.
type SQLiteRepositoryManager struct {
	logger logging.Logger
}

func (m *SQLiteRepositoryManager) Uploads(db dbx.DBTX) uploads.Repository {
	return uploads.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	if err := setupGoose(m.logger, "sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, migrations.DirSQLite)
}

func NewSQLiteRepositoryManager(db *sql.DB, logger logging.Logger) (RepositoryManager, error) {
	return &SQLiteRepositoryManager{logger: logger}, nil
}
