// Package main provides the entry point for renderd.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/phoenixlabs/renderd/internal/browser"
	"github.com/phoenixlabs/renderd/internal/config"
	"github.com/phoenixlabs/renderd/internal/handlers"
	"github.com/phoenixlabs/renderd/internal/metrics"
	"github.com/phoenixlabs/renderd/internal/middleware"
	"github.com/phoenixlabs/renderd/internal/render"
	"github.com/phoenixlabs/renderd/internal/sanitize"
	"github.com/phoenixlabs/renderd/internal/transcribe"
	"github.com/phoenixlabs/renderd/pkg/version"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup logging first so validation warnings are visible
	setupLogging(cfg.LogLevel)

	cfg.Validate()

	printBanner()

	// Sanitizer rules, with optional hot-reloaded overrides
	rules, err := sanitize.NewManager(cfg.SanitizeRulesPath, cfg.SanitizeRulesHotReload)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sanitizer")
	}

	// The browser session is created unlaunched; Warm launches eagerly
	// but a failure here just defers the launch to the first batch.
	session := browser.NewSession(cfg)
	session.Warm(context.Background())

	worker := render.NewWorker(session, rules, cfg.NavTimeout, cfg.SettleDelay)
	scheduler := render.NewScheduler(session, worker, cfg.Concurrency, cfg.MaxBatchSize)
	gate := render.NewGate(cfg.GateEnabled)

	var transcriber handlers.Transcriber
	if cfg.TranscribeEnabled {
		transcriber = transcribe.New(cfg)
		log.Info().Msg("Transcription endpoint enabled")
	}

	handler := handlers.New(scheduler, gate, session, transcriber, cfg)

	// Apply middleware (in order - first listed runs first)
	chain := middleware.Chain(
		middleware.Recovery,
		middleware.Logging,
		middleware.SecurityHeaders,
		middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: splitOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
		}),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: chain(handler.Routes()),
		// A full batch can legitimately take minutes; the write timeout
		// has to outlast the slowest wave.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.NavTimeout*2 + 5*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stopCh := make(chan struct{})

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metrics.SetBuildInfo(version.Full(), version.GoVersion())
		go metrics.StartMemoryCollector(10*time.Second, stopCh)

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())

		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:      metricsMux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Int("port", cfg.MetricsPort).Msg("Prometheus metrics server started")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	go func() {
		log.Info().
			Str("address", addr).
			Int("concurrency", cfg.Concurrency).
			Bool("gate_enabled", cfg.GateEnabled).
			Bool("metrics_enabled", cfg.MetricsEnabled).
			Msg("renderd is ready to accept requests")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	close(stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown error")
		}
	}

	if err := session.Close(); err != nil {
		log.Error().Err(err).Msg("Browser session close error")
	}
	if err := rules.Close(); err != nil {
		log.Error().Err(err).Msg("Sanitizer manager close error")
	}

	log.Info().Msg("Shutdown complete")
}

// setupLogging configures zerolog based on the log level.
func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// splitOrigins parses the comma-separated CORS allow list.
func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// printBanner prints the startup banner.
func printBanner() {
	banner := `
                      _               _
  _ __ ___ _ __   __| | ___ _ __ __| |
 | '__/ _ \ '_ \ / _' |/ _ \ '__/ _' |
 | | |  __/ | | | (_| |  __/ | | (_| |
 |_|  \___|_| |_|\__,_|\___|_|  \__,_|
`
	fmt.Println(banner)
	log.Info().
		Str("version", version.Full()).
		Str("go_version", version.GoVersion()).
		Msg("Starting renderd")
}
