package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mcphub/mcphubd/internal/config"
	"github.com/mcphub/mcphubd/internal/daemon"
	"github.com/mcphub/mcphubd/internal/metrics"
	"github.com/mcphub/mcphubd/internal/router"
	"github.com/mcphub/mcphubd/internal/supervisor"
	"github.com/mcphub/mcphubd/internal/transport/httpsession"
	"github.com/mcphub/mcphubd/internal/transport/local"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mcphubd daemon in the foreground",
	Long: `Run starts the supervisor, the local stream socket, and (if enabled) the
Streamable HTTP+SSE endpoint, and blocks until an interrupt or termination
signal is received.

Examples:
  mcphubd run
  mcphubd run --config /etc/mcphubd/mcphubd.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Daemon.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if dump, err := cfg.Dump(); err == nil {
		logger.Debug("effective configuration", "yaml", string(dump))
	}

	if err := daemon.AcquirePIDFile(cfg.Daemon.PIDFile); err != nil {
		return err
	}
	defer daemon.ReleasePIDFile(cfg.Daemon.PIDFile)

	ctx, cancel := daemon.NotifyShutdown(context.Background())
	defer cancel()

	requestTimeout, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("request_timeout: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sup := supervisor.New(logger, supervisor.WithRequestTimeout(requestTimeout), supervisor.WithMetrics(m))
	sup.StartAll(ctx, cfg.Backends)
	defer sup.StopAll()
	go sup.StartHealthLoop(ctx)

	rt := router.New(sup, logger)

	localTransport := local.New(cfg.Socket.Path, rt, logger)
	if err := localTransport.Listen(); err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	defer localTransport.Close()
	go func() {
		if err := localTransport.Serve(ctx); err != nil {
			logger.Error("local transport stopped", "error", err)
		}
	}()

	var httpServer *http.Server
	if cfg.HTTP.Enabled {
		idleTimeout := time.Duration(cfg.HTTP.IdleTimeoutSeconds) * time.Second
		engine := httpsession.New(rt, logger, m, idleTimeout)
		go engine.StartReaper(ctx)
		defer engine.Stop()

		mux := http.NewServeMux()
		mux.Handle("/mcp", engine)
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", healthzHandler(sup))

		httpServer = &http.Server{Addr: cfg.HTTP.Addr(), Handler: mux}
		go func() {
			logger.Info("http transport listening", "addr", cfg.HTTP.Addr())
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server stopped", "error", err)
			}
		}()
	}

	statusWriter := daemon.NewStatusWriter(cfg.Daemon.StatusFile, cfg.Socket.Path, time.Now(), func() int {
		return len(sup.ConnectedBackends())
	})
	go daemon.RunStatusLoop(ctx, statusWriter, func(err error) {
		logger.Warn("failed to write status file", "error", err)
	})

	logger.Info("mcphubd started", "socket", cfg.Socket.Path, "backends", len(cfg.Backends))
	<-ctx.Done()
	logger.Info("shutting down")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}

	// Flush a final snapshot per spec §4.6's shutdown sequence ("flush the
	// status file"); RunStatusLoop writes once at start and then only on its
	// own ticker, and does not write again when ctx is canceled.
	if err := statusWriter.Write(); err != nil {
		logger.Warn("failed to flush status file on shutdown", "error", err)
	}

	return nil
}

// healthzHandler implements spec.md's supplemented /healthz endpoint,
// grounded on the teacher's isServerHealthy polling helper and
// internal/adapter/inbound/http/health.go's 200/503 convention.
func healthzHandler(sup *supervisor.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sup.AnyConnected() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
	}
}

// parseLogLevel converts a string log level to slog.Level, mirroring the
// teacher's parseLogLevel. Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
