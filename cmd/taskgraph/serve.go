package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/metalagman/taskgraph/internal/auth"
	"github.com/metalagman/taskgraph/internal/config"
	"github.com/metalagman/taskgraph/internal/tracker"
	"github.com/metalagman/taskgraph/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(workingDir())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			app := newServeApp(cfg)
			if err := app.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start server: %w", err)
			}
			select {
			case sig := <-app.Done():
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			case <-cmd.Context().Done():
			}
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return app.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")
	return cmd
}

func newServeApp(cfg config.Config) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			provideDB,
			provideTracker,
			provideUsers,
			provideAPI,
			provideHTTPServer,
		),
		fx.Invoke(func(*http.Server) {}),
		fx.StopTimeout(cfg.HTTP.ShutdownTimeout),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	)
}

func provideDB(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	database, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return database.Close() },
	})
	return database, nil
}

func provideTracker(database *sql.DB, cfg config.Config) *tracker.Service {
	return tracker.New(database, tracker.Options{
		DefaultPageSize: cfg.Tasks.DefaultPageSize,
		MaxPageSize:     cfg.Tasks.MaxPageSize,
	})
}

func provideUsers(database *sql.DB, cfg config.Config) *auth.Store {
	return auth.NewStore(database, cfg.Auth.BcryptCost)
}

func provideAPI(svc *tracker.Service, users *auth.Store, cfg config.Config) *web.Server {
	return web.NewServer(svc, users, web.Options{
		RequestTimeout:           cfg.HTTP.RequestTimeout,
		AllowManagerRegistration: cfg.Auth.AllowManagerRegistration,
	})
}

func provideHTTPServer(lc fx.Lifecycle, api *web.Server, cfg config.Config) *http.Server {
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("http server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return srv
}
