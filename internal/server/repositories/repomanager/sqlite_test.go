package repomanager

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dekinai/internal/logging"
	"github.com/dmitrijs2005/dekinai/internal/server/models"
	"github.com/dmitrijs2005/dekinai/internal/server/repositories/uploads"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		in         string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{in: "sqlite://./dekinai.sqlite", wantDriver: DriverSQLite, wantDSN: "file:./dekinai.sqlite?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"},
		{in: "sqlite:///var/lib/d.db", wantDriver: DriverSQLite, wantDSN: "file:/var/lib/d.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"},
		{in: "postgres://u:p@db:5432/dekinai?sslmode=disable", wantDriver: DriverPostgres, wantDSN: "postgres://u:p@db:5432/dekinai?sslmode=disable"},
		{in: "postgresql://db/dekinai", wantDriver: DriverPostgres, wantDSN: "postgresql://db/dekinai"},
		{in: "sqlite://", wantErr: true},
		{in: "mysql://db", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			driver, dsn, err := ParseDSN(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
			assert.Equal(t, tt.wantDSN, dsn)
		})
	}
}

// Runs the real goose migrations against a temp SQLite file.
func TestOpen_SQLiteMigratesAndServesUploads(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "ledger.sqlite")

	var logs bytes.Buffer
	logger, err := logging.New(&logs, "text", "info")
	require.NoError(t, err)

	db, m, err := Open(ctx, dsn, 2, logger)
	require.NoError(t, err)
	defer db.Close()

	require.IsType(t, &SQLiteRepositoryManager{}, m)

	repo := m.Uploads(db)
	require.IsType(t, &uploads.SQLiteRepository{}, repo)

	ok, err := repo.Reserve(ctx, &models.Upload{FileStem: "abcdEFGH", FileExtension: "txt", DeletionSecretHash: "h"})
	require.NoError(t, err)
	assert.True(t, ok)

	// Re-running migrations is a no-op.
	require.NoError(t, m.RunMigrations(ctx, db))

	// goose output goes through the structured logger.
	assert.Contains(t, logs.String(), "module=migrations")
	assert.Contains(t, logs.String(), "00001_create_uploads.sql")
}

func TestGooseLogger_Printf(t *testing.T) {
	var logs bytes.Buffer
	logger, err := logging.New(&logs, "json", "info")
	require.NoError(t, err)

	gooseLogger{logger: logger}.Printf("OK   %s (%s)\n", "00001_create_uploads.sql", "1ms")
	assert.Contains(t, logs.String(), `"msg":"OK   00001_create_uploads.sql (1ms)"`)
	assert.Contains(t, logs.String(), `"level":"INFO"`)
}

func TestOpen_UnsupportedDSN(t *testing.T) {
	_, _, err := Open(context.Background(), "redis://localhost", 1, logging.NewNop())
	assert.Error(t, err)
}
