package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/config"
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
	"github.com/vovakirdan/wirechat-tcp/internal/store"
	"github.com/vovakirdan/wirechat-tcp/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-tcp/internal/transport/http"
	"github.com/vovakirdan/wirechat-tcp/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	cfg             config.Config
	chat            *tcp.Server
	admin           *stdhttp.Server
	registry        *core.Registry
	store           store.Store
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		cfg:             *cfg,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}

	sessionOpts := core.SessionOptions{
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}
	if cfg.JournalPath != "" {
		st, err := sqlite.New(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		a.store = st
		sessionOpts.Journal = st
		logger.Info().Str("db_path", cfg.JournalPath).Msg("session journal initialized")
	}

	a.registry = core.NewRegistry(core.RegistryOptions{
		MaxClients:   cfg.MaxClients,
		WriteTimeout: cfg.WriteTimeout,
	}, log.Component(logger, "core"))
	router := core.NewRouter(a.registry, nil)

	a.chat = tcp.NewServer(a.registry, router, tcp.Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Session:          sessionOpts,
	}, log.Component(logger, "tcp"))

	if cfg.AdminAddr != "" {
		var sessions store.SessionStore
		if a.store != nil {
			sessions = a.store
		}
		a.admin = transporthttp.NewServer(a.registry, sessions, a.chat, cfg, log.Component(logger, "admin"))
	}

	return a, nil
}

// Run listens on the configured address and serves until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.ListenAddr())
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the chat server on ln, plus the admin server if configured.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	serverErr := make(chan error, 2)

	go func() {
		err := a.chat.Serve(ctx, ln)
		if errors.Is(err, tcp.ErrServerClosed) {
			err = nil
		}
		serverErr <- err
	}()

	if a.admin != nil {
		go func() {
			a.log.Info().Str("addr", a.admin.Addr).Msg("starting admin server")
			if err := a.admin.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- fmt.Errorf("admin server: %w", err)
			}
		}()
	}

	select {
	case err := <-serverErr:
		if shutdownErr := a.shutdown(); err == nil {
			err = shutdownErr
		}
		return err
	case <-ctx.Done():
		return a.shutdown()
	}
}

// Registry exposes the live client table.
func (a *App) Registry() *core.Registry {
	return a.registry
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down")

	var errs []error
	if a.admin != nil {
		if err := a.admin.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
		}
	}
	if err := a.chat.Shutdown(shutdownCtx); err != nil {
		// Sessions that never observed the notice are abandoned.
		a.log.Warn().Err(err).Msg("sessions still running after shutdown timeout")
	}

	a.cleanup()
	return errors.Join(errs...)
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
