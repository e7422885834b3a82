package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/commerce-rag/internal/adapters/http"
	mcpadapter "github.com/kirillkom/commerce-rag/internal/adapters/mcp"
	"github.com/kirillkom/commerce-rag/internal/bootstrap"
	"github.com/kirillkom/commerce-rag/internal/config"
	"github.com/kirillkom/commerce-rag/internal/observability/logging"
	"github.com/kirillkom/commerce-rag/internal/observability/metrics"
)

const version = "1.0.0"

func main() {
	envFile, envErr := config.LoadDotEnv()
	cfg := config.Load()
	logging.Install("api", cfg.LogLevel)
	if envErr != nil {
		slog.Warn("dotenv_load_failed", "error", envErr)
	} else if envFile != "" {
		slog.Info("dotenv_loaded", "path", envFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Observer:             httpMetrics.Retrieval(),
		OnBreakerStateChange: httpMetrics.Retrieval().ObserveBreakerState,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mcpServer := mcpadapter.NewServer(app.Aggregator, app.Router, cfg.RAGTopK, version)
	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Asker:     app.AskUC,
		Retriever: app.Aggregator,
		Intents:   app.Router,
		Ingestor:  app.IngestUC,
		Sources:   app.Sources,
		MCP:       mcpServer.HTTPHandler(),
		Metrics:   httpMetrics,
	})

	server := &http.Server{
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		slog.Error("api_listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
