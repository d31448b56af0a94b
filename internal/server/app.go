// Package server wires the file host together: configuration, ledger,
// blob store, HTTP API listeners, the gRPC health endpoint and graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/dekinai/internal/logging"
	"github.com/dmitrijs2005/dekinai/internal/server/config"
	"github.com/dmitrijs2005/dekinai/internal/server/httpapi"
	"github.com/dmitrijs2005/dekinai/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dekinai/internal/server/services"
	"github.com/dmitrijs2005/dekinai/internal/server/storage"

	gs "github.com/dmitrijs2005/dekinai/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	files  *services.FileService
	http   *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	ctx := context.Background()

	db, rm, err := repomanager.Open(ctx, c.DatabaseDSN, c.DBPoolSize, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	files, err := services.NewFileService(db, rm, store, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	h := httpapi.NewServer(files, httpapi.Options{
		MaxUploadSize: c.MaxUploadSize,
		LocalPort:     localPort(c.ListenAddr),
	}, logger)

	return &App{config: c, logger: logger, db: db, files: files, http: h}, nil
}

func newStore(ctx context.Context, c *config.Config) (storage.Store, error) {
	if c.StorageBackend == config.BackendS3 {
		return storage.NewS3Store(ctx, storage.S3Config{
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		})
	}
	return storage.NewLocalStore(c.OutputDir)
}

// localPort is the port appended to "localhost" links; empty without TCP.
func localPort(addr string) string {
	if addr == "" {
		return ""
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return port
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc, network, address string) {
	lis, err := listen(network, address)
	if err != nil {
		app.logger.Error(ctx, "listen failed", "network", network, "address", address, "error", err)
		cancelFunc()
		return
	}

	if err := app.http.Serve(ctx, lis); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// listen binds address. A leftover unix socket file from an earlier run is
// removed first.
func listen(network, address string) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(address); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	return net.Listen(network, address)
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.HealthAddrGRPC, app.logger, app.files, app.config.HealthCheckInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.config.ListenAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc, "tcp", app.config.ListenAddr)
		}()
	}

	if app.config.UnixSocket != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc, "unix", app.config.UnixSocket)
		}()
	}

	if app.config.HealthAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "Stopped")
}
