package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/harvestlink/advisor/internal/api"
	"github.com/harvestlink/advisor/internal/artifacts"
	"github.com/harvestlink/advisor/internal/config"
	"github.com/harvestlink/advisor/internal/history"
	"github.com/harvestlink/advisor/internal/inference"
	"github.com/harvestlink/advisor/internal/logging"
	"github.com/harvestlink/advisor/internal/server"
	"github.com/harvestlink/advisor/internal/weather"
)

var version = "dev"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	artifactsDir := flag.String("artifacts-dir", "", "Directory containing model and encoder files (overrides config)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("HarvestLink advisor v%s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Version = version
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *artifactsDir != "" {
		cfg.Artifacts.Dir = *artifactsDir
	}

	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logging: %v\n", err)
		os.Exit(1)
	}

	logging.Info().
		Str("version", version).
		Str("artifacts_dir", cfg.Artifacts.Dir).
		Msg("HarvestLink advisor starting")

	// Artifacts are loaded once; a missing or inconsistent file is fatal
	store, err := artifacts.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Artifact store not available")
	}
	orchestrator, err := inference.New(store, newWeatherLookup(cfg.Weather),
		inference.WithWeatherTimeout(cfg.Weather.Timeout),
		inference.WithWeatherFallback(cfg.Weather.FallbackOnError),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load models")
	}

	var hist api.History
	if cfg.History.Enabled {
		historyStore, err := history.Open(cfg.History.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.History.Path).Msg("Failed to open prediction history")
		}
		defer historyStore.Close()
		hist = historyStore
	}

	srv := server.New(cfg, orchestrator, hist)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("Server error")
		}
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, shutting down...")
		if err := srv.Stop(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Error during shutdown")
		}
	}
}

// newWeatherLookup wires the live weather client behind cache and breaker.
// Without an API key every district resolves to an empty snapshot and the
// request values are used.
func newWeatherLookup(cfg config.WeatherConfig) weather.Lookup {
	if cfg.APIKey == "" {
		logging.Warn().Msg("No weather API key configured, using request values for weather features")
		return weather.NewStatic(nil)
	}

	opts := weather.DefaultOptions()
	opts.Timeout = cfg.Timeout
	opts.CacheTTL = cfg.CacheTTL
	opts.CacheSize = cfg.CacheSize
	return weather.NewResilient(weather.NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Country, cfg.Timeout), opts)
}
