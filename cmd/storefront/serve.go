package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akashdube/PartsUL/pkg/catalog"
	"github.com/akashdube/PartsUL/pkg/microservice"
	"github.com/akashdube/PartsUL/pkg/storefront"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the storefront HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, load)
		},
	}
}

func serve(ctx context.Context, load configLoader) error {
	a, err := newApp(ctx, load, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing clients.")
		}
	}()

	catalogCfg, err := a.cfg.CatalogConfig()
	if err != nil {
		return err
	}
	svc, err := catalog.NewService(catalogCfg, a.cache, a.codec, a.store, a.logger)
	if err != nil {
		return err
	}
	admin, err := catalog.NewAdmin(a.store, a.cache, a.announcer, a.logger)
	if err != nil {
		return err
	}
	handlers, err := storefront.NewHandlers(svc, admin, a.logger)
	if err != nil {
		return err
	}

	server := microservice.NewBaseServer(a.logger, a.cfg.HTTPPort)
	for name, check := range a.ready {
		server.AddReadinessCheck(name, check)
	}
	handlers.Register(server.Mux())
	if err := server.Start(); err != nil {
		return err
	}
	a.logger.Info().
		Str("cache_backend", a.cfg.Cache.Backend).
		Str("store_backend", a.cfg.Store.Backend).
		Str("codec", a.codec.Name()).
		Msg("Storefront started.")

	<-ctx.Done()
	a.logger.Info().Msg("Shutdown signal received.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("HTTP server did not shut down cleanly.")
	}
	admin.Wait()
	if stopper, ok := a.announcer.(interface{ Stop(context.Context) error }); ok {
		if err := stopper.Stop(shutdownCtx); err != nil {
			a.logger.Warn().Err(err).Msg("Announcer did not flush before the deadline.")
		}
	}
	return nil
}
