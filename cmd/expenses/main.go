package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"expenses/internal/backend"
	"expenses/internal/cli"
	apphttp "expenses/internal/http"
	"expenses/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "driver", cfg.DBDriver)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Logger:             logger,
		Service:            result.Service,
		Store:              result.Store,
		GraphiQL:           cfg.GraphiQLEnabled,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to build GraphQL schema", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting expenses server",
			"port", cfg.Port,
			"driver", cfg.DBDriver,
			"graphql_path", apphttp.GraphQLPath,
			"events_enabled", result.Events,
			"graphiql", cfg.GraphiQLEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		logger.Info("Shutting down server", "timeout", cfg.ShutdownTimeout)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		if cerr := result.Cleanup(); cerr != nil {
			logger.Error("Backend cleanup failed", log.FieldError, cerr)
		}
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
