// Package server assembles the reference host: settings storage, the
// websocket hub, attachment presigning and the HTTP API, with graceful
// shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/server/attachments"
	"github.com/vttlabs/lorekeeper/internal/server/config"
	"github.com/vttlabs/lorekeeper/internal/server/httpapi"
	"github.com/vttlabs/lorekeeper/internal/server/hub"
	"github.com/vttlabs/lorekeeper/internal/server/settings"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	manager settings.Manager
	hub     *hub.Hub
	api     *httpapi.API
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	manager, err := settings.NewManager(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	secret := []byte(c.SecretKey)
	h := hub.New(secret, logger)
	attach := attachments.NewService(c)
	api := httpapi.New(secret, manager.Settings(), h, attach, logger)

	return &App{config: c, logger: logger, manager: manager, hub: h, api: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.api.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.hub.Run(ctx)
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	if closeErr := app.manager.Close(); closeErr != nil {
		app.logger.Error(ctx, "closing storage", "error", closeErr)
	}

	return err
}
