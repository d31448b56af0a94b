package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/dekinai/internal/dbx"
	"github.com/dmitrijs2005/dekinai/internal/logging"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ParseDSN maps a configured database URL to a database/sql driver name and
// driver DSN.
//
//	sqlite://./dekinai.sqlite   -> sqlite, file:./dekinai.sqlite?_pragma=...
//	postgres://u:p@host/db      -> pgx, unchanged
func ParseDSN(dsn string) (driver, driverDSN string, err error) {
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		if path == "" {
			return "", "", fmt.Errorf("sqlite DSN %q has no path", dsn)
		}
		return DriverSQLite, "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", nil
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres, dsn, nil
	}
	return "", "", fmt.Errorf("unsupported database DSN %q", dsn)
}

// Open connects the pool for dsn, picks the matching manager and applies
// migrations, logging their progress to logger. poolSize <= 0 sizes the
// pool to the CPU count.
func Open(ctx context.Context, dsn string, poolSize int, logger logging.Logger) (*sql.DB, RepositoryManager, error) {
	driver, driverDSN, err := ParseDSN(dsn)
	if err != nil {
		return nil, nil, err
	}

	db, err := dbx.OpenPool(ctx, driver, driverDSN, poolSize)
	if err != nil {
		return nil, nil, err
	}

	var m RepositoryManager
	switch driver {
	case DriverSQLite:
		m, err = NewSQLiteRepositoryManager(db, logger)
	default:
		m, err = NewPostgresRepositoryManager(db, logger)
	}
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	return db, m, nil
}
