package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/app"
	"github.com/dokzlo13/huemotion/internal/config"
	"github.com/dokzlo13/huemotion/internal/repl"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	resetState := flag.Bool("reset-state", false, "Forget the persisted animation on startup")
	interactive := flag.Bool("repl", false, "Read commands from stdin")
	flag.Parse()

	// Secrets like HUE_TOKEN may live in .env; a missing file is fine
	_ = godotenv.Load(".env")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)

	log.Info().Str("config", configPath).Msg("Starting huemotion")

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if *resetState {
		log.Info().Msg("Clearing persisted state (--reset-state)")
		if err := application.ClearState(); err != nil {
			log.Warn().Err(err).Msg("Failed to clear state")
		}
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	for _, line := range strings.Split(strings.TrimSpace(application.ScheduleSummary()), "\n") {
		log.Info().Msg(line)
	}

	if *interactive {
		go func() {
			if err := repl.Run(application.Context(), application.Engine(), os.Stdin, os.Stdout); err != nil {
				log.Debug().Err(err).Msg("Console closed")
			}
			application.Shutdown()
		}()
	}

	application.Wait()

	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
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
