package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"rag-agent/internal/adapter/httpapi"
	"rag-agent/internal/di"
	"rag-agent/internal/infra/config"
	"rag-agent/internal/infra/logger"
	"rag-agent/internal/infra/observability"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.NewWithOTel(cfg.Otel.Enabled())
	slog.SetDefault(log)

	// 3. Initialize Telemetry Providers
	ctx := context.Background()
	otelShutdown, err := observability.InitProviders(ctx, cfg.Otel)
	if err != nil {
		log.Error("failed to init telemetry providers", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// 4. Wire Components
	components, err := di.NewApplicationComponents(ctx, cfg, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	// 5. Start Catalog Refresher
	components.Refresher.Start(ctx)
	defer components.Refresher.Stop()

	// 6. Initialize Handlers and Router
	handler := httpapi.NewHandler(
		components.AskUsecase,
		components.SearchUsecase,
		components.Refresher,
		components.Store,
		log,
	)
	e := httpapi.NewRouter(handler, components.Metrics.Handler())

	// 7. Start Server. h2c lets local clients and collectors speak HTTP/2
	// without TLS.
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: h2c.NewHandler(e, &http2.Server{}),
	}
	go func() {
		log.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	// 8. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}
