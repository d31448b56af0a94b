package repomanager

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/dekinai/internal/logging"
	"github.com/dmitrijs2005/dekinai/internal/server/migrations"
)

// gooseLogger sends goose's printf-style output to a logging.Logger.
type gooseLogger struct {
	logger logging.Logger
}

var _ goose.Logger = gooseLogger{}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Info(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

// setupGoose points goose at the embedded migrations and the given logger.
func setupGoose(logger logging.Logger, dialect string) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	goose.SetLogger(gooseLogger{logger: logger.With("module", "migrations")})
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return nil
}
