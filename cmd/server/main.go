package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/kevingruber/journal-gateway/internal/config"
	"github.com/kevingruber/journal-gateway/internal/journal"
	"github.com/kevingruber/journal-gateway/internal/server"
	"github.com/kevingruber/journal-gateway/internal/sysinfo"
	"github.com/kevingruber/journal-gateway/internal/telemetry"
)

const version = "journal-gateway 1.0.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	keyFile := flag.String("key", "", "Path to the TLS key PEM file")
	certFile := flag.String("cert", "", "Path to the TLS certificate PEM file")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if flag.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "This program does not take arguments.")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// TLS flags override the config file; key and cert come together.
	if *keyFile != "" || *certFile != "" {
		if *keyFile == "" || *certFile == "" {
			fmt.Fprintln(os.Stderr, "Certificate and key files must be specified together.")
			os.Exit(1)
		}
		cfg.Server.TLS.Enabled = true
		cfg.Server.TLS.KeyFile = *keyFile
		cfg.Server.TLS.CertFile = *certFile
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	cleanup, err := telemetry.SetupTelemetry(cfg.Sentry.Enabled, cfg.Sentry.Dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to setup telemetry")
	}
	defer cleanup()

	source, err := openSource(cfg.Journal, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open journal source")
	}
	defer source.Close()

	// Create and run server
	srv := server.New(cfg, source, sysinfo.Host{}, logger)

	ctx := context.Background()
	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	// Run server
	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}

	logger.Info().Msg("server stopped")
}

func openSource(cfg config.JournalConfig, logger zerolog.Logger) (journal.Source, error) {
	if cfg.Path == "" {
		return journal.NewStore(), nil
	}
	return journal.NewFileSource(cfg.Path, cfg.Watch, logger)
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}

	return logger
}
