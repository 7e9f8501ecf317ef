// Command notekeeper-server serves the notekeeper HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/notekeeper/internal/config"
	"github.com/and161185/notekeeper/internal/limiter"
	"github.com/and161185/notekeeper/internal/migrate"
	"github.com/and161185/notekeeper/internal/repository"
	"github.com/and161185/notekeeper/internal/repository/filestore"
	"github.com/and161185/notekeeper/internal/repository/postgres"
	httpserver "github.com/and161185/notekeeper/internal/server/http"
	"github.com/and161185/notekeeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// backend bundles the storage-dependent pieces.
type backend struct {
	users repository.UserRepository
	notes repository.NoteRepository
	lim   limiter.Limiter
	close func()
}

// main loads configuration, opens storage and starts the HTTP server.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.Bool("trusted_proxy", cfg.TrustedProxy),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer be.close()

	// Services
	authSvc := service.NewAuthService(be.users, service.NewMemorySessions(), []byte(cfg.JWTKey), cfg.SessionTTL, be.lim)
	noteSvc := service.NewNoteService(be.notes, cfg.PublicOrigin)

	var opts []httpserver.Option
	if cfg.TrustedProxy {
		opts = append(opts, httpserver.WithTrustedProxy())
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpserver.New(authSvc, noteSvc, logger, opts...),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Warn("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			be.close()
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		ver, err := migrate.Up(ctx, cfg.DSN, logger)
		if err != nil {
			return backend{}, err
		}
		logger.Info("schema ready", zap.Int64("version", ver))

		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return backend{}, err
		}
		return backend{
			users: postgres.NewUserRepo(db),
			notes: postgres.NewNoteRepo(db),
			lim:   limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor),
			close: db.Close,
		}, nil
	default:
		store, err := filestore.New(cfg.DataDir)
		if err != nil {
			return backend{}, err
		}
		logger.Info("file store ready", zap.String("dir", store.Dir()))
		return backend{
			users: store.Users(),
			notes: store.Notes(),
			lim:   limiter.NewMemory(cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor),
			close: func() {},
		}, nil
	}
}
