// Package cli wires the pacer commands: running a session, inspecting proxy
// health, and resetting persisted scores.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/pacer"
	"github.com/vietddude/pacer/internal/core/config"
	redisclient "github.com/vietddude/pacer/internal/infra/redis"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "pacer",
	Short: "Pacer outbound request session",
	Long:  `Pacer paces outbound API traffic through speed modes, proxy rotation, identity rotation, and escalation-aware retries.`,
	Run:   runSession,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig is the shared bootstrap: env, config file, logger.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	return cfg
}

// newSession builds a session from config, attaching the redis score store
// when one is configured.
func newSession(cfg *config.AppConfig) (*pacer.Session, func(), error) {
	cleanup := func() {}

	var opts []pacer.Option
	if cfg.Redis.URL != "" {
		rdb, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to redis: %w", err)
		}
		cleanup = func() { _ = rdb.Close() }
		opts = append(opts, pacer.WithScoreStore(redisclient.NewScoreStore(rdb, cfg.Mode.Name)))
	}

	session, err := pacer.New(cfg, opts...)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return session, cleanup, nil
}

func runSession(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	session, cleanup, err := newSession(cfg)
	if err != nil {
		slog.Error("Failed to initialize session", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := session.Start(ctx); err != nil {
		slog.Error("Failed to start session", "error", err)
		os.Exit(1)
	}

	// Metrics and health endpoints
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		stats := session.Stats()
		fmt.Fprintf(w, "ok mode=%s concurrency=%d in_flight=%d escalation=%d proxies=%d/%d\n",
			stats.Mode,
			stats.EffectiveConcurrency,
			stats.InFlight,
			stats.EscalationLevel,
			stats.ActiveProxies,
			stats.TotalProxies)
	})
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: mux}
	go func() {
		slog.Info("Metrics server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	slog.Info("Session started", "config", cfgPath, "mode", session.Mode().Name)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down metrics server", "error", err)
	}
	if err := session.Close(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
