package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/aquabridge/pkg/api"
	"github.com/urmzd/aquabridge/pkg/aqualogic"
	"github.com/urmzd/aquabridge/pkg/bridge"
	"github.com/urmzd/aquabridge/pkg/config"
	"github.com/urmzd/aquabridge/pkg/db"
	"github.com/urmzd/aquabridge/pkg/display"
	"github.com/urmzd/aquabridge/pkg/mcp"
	"github.com/urmzd/aquabridge/pkg/messages"
	"github.com/urmzd/aquabridge/pkg/metrics"
	"github.com/urmzd/aquabridge/pkg/mqtt"
	"github.com/urmzd/aquabridge/pkg/schema"
	"github.com/urmzd/aquabridge/pkg/tracker"

	_ "github.com/urmzd/aquabridge/docs"
)

// @title           aquabridge API
// @version         1.0
// @description     Web UI API for an AquaLogic pool controller bridged to MQTT

// @host      localhost:8080
// @BasePath  /api
// @schemes   http https

const (
	historyBuffer = 64
	pruneInterval = time.Hour
)

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	zerolog.SetGlobalLevel(logLevel(cfg.Verbose))

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("aquabridge exiting")
		os.Exit(1)
	}
}

// run owns every resource. Its deferred closes have run by the time it
// returns, including on failure.
func run(cfg *config.Config) error {
	var err error

	log.Info().
		Str("source", cfg.Source()).
		Str("mqtt", cfg.MQTT.Dest).
		Str("identifier", cfg.Identifier).
		Strs("enable", cfg.Enable).
		Msg("aquabridge starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open history database unless disabled
	var (
		database *db.DB
		recorder *db.Recorder
	)
	if cfg.DB != "off" {
		database, err = db.Open(cfg.DB)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if err := database.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}()
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		log.Info().Str("path", database.Path()).Msg("Database opened")

		recorder = db.NewRecorder(database, historyBuffer)
		defer recorder.Close()

		if keep := cfg.HistoryRetention(); keep > 0 {
			go database.Retain(ctx, keep, pruneInterval)
		}
	}

	formatter, err := messages.New(cfg.Identifier, cfg.DiscoverPrefix, cfg.Enable, cfg.SystemMessageSensors)
	if err != nil {
		return fmt.Errorf("entity configuration: %w", err)
	}

	mirror := display.NewMirror()
	tr := tracker.New(cfg.SourceTimeoutDuration(), cfg.MessageExpiryDuration(), tracker.WithDisplay(mirror))
	m := metrics.NewDefault()

	port := aqualogic.NewPort(cfg.Source())
	opts := []bridge.Option{bridge.WithMetrics(m), bridge.WithDisplay(mirror)}
	if recorder != nil {
		opts = append(opts, bridge.WithRecorder(recorder))
	}
	b := bridge.New(port, tr, formatter, opts...)

	// MQTT first so discovery goes out before the first state
	client := mqtt.NewClient(cfg.MQTTOptions(), formatter.SubscriptionTopics(), b.HandleMessage, b.OnConnect)
	client.SetObserver(m)
	b.SetPublisher(client)

	log.Info().Str("dest", cfg.MQTT.Dest).Msg("Connecting MQTT")
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Disconnect()

	log.Info().Str("source", cfg.Source()).Msg("Connecting controller")
	if err := port.Connect(ctx); err != nil {
		return fmt.Errorf("controller connect: %w", err)
	}
	defer port.Close()

	if cfg.HTTP.Addr != "" {
		validator := schema.NewValidator()
		mcpServer := mcp.NewServer(b, mirror, validator)

		routerOpts := []api.Option{
			api.WithMetrics(m.Handler()),
			api.WithMCP(mcpServer.Handler()),
		}
		if database != nil {
			routerOpts = append(routerOpts, api.WithHistory(database))
		}
		if cfg.HTTP.User != "" {
			routerOpts = append(routerOpts, api.WithBasicAuth(cfg.HTTP.User, cfg.HTTP.Pass))
		}
		router := api.NewRouter(b, mirror, routerOpts...)

		go func() {
			log.Info().Str("address", cfg.HTTP.Addr).Msg("Starting web UI")
			if err := router.Run(ctx, cfg.HTTP.Addr); err != nil {
				log.Error().Err(err).Msg("Web UI stopped")
			}
		}()
	}

	watchdog := make(chan error, 1)
	go func() { watchdog <- b.Run(ctx) }()

	return waitForExit(ctx, client.Fatal(), watchdog)
}

// waitForExit blocks until shutdown is requested or the broker or panel
// fails.
func waitForExit(ctx context.Context, mqttFatal, watchdog <-chan error) error {
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
		return nil
	case err := <-mqttFatal:
		return fmt.Errorf("mqtt connection lost: %w", err)
	case err := <-watchdog:
		if err != nil {
			return fmt.Errorf("panel stopped updating: %w", err)
		}
		return nil
	}
}

// logLevel maps -v counts to zerolog levels.
func logLevel(verbose int) zerolog.Level {
	switch {
	case verbose >= 3:
		return zerolog.DebugLevel
	case verbose == 2:
		return zerolog.InfoLevel
	case verbose == 1:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
