// ESL Gateway - Electronic Shelf Label Fleet Controller
//
// This is the main entry point for the ESL gateway. The gateway fronts a
// fleet of electronic shelf labels over MQTT and exposes a REST API for
// storefront tooling:
//   - Label fleet registry with battery and freshness tracking
//   - Simulation mode for development without broker or hardware
//   - Runtime switching between simulated and production transports
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/openesl/eslgate/migrations"

	"github.com/openesl/eslgate/internal/api"
	"github.com/openesl/eslgate/internal/gateway"
	"github.com/openesl/eslgate/internal/infrastructure/config"
	"github.com/openesl/eslgate/internal/infrastructure/database"
	"github.com/openesl/eslgate/internal/infrastructure/influxdb"
	"github.com/openesl/eslgate/internal/infrastructure/logging"
	"github.com/openesl/eslgate/internal/infrastructure/mqtt"
	"github.com/openesl/eslgate/internal/label"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ESL gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the label catalog database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Bootstrap the in-memory fleet from the catalog
	catalog := label.NewSQLiteCatalog(db.DB)
	if seedErr := label.EnsureSeed(ctx, catalog); seedErr != nil {
		return fmt.Errorf("seeding label catalog: %w", seedErr)
	}
	seed, err := catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("loading label catalog: %w", err)
	}

	registry := label.NewRegistry(cfg.Gateway.StalenessWindow)
	registry.SetLogger(log)
	registry.Seed(seed, time.Now())
	log.Info("label registry initialised", "labels", registry.Count())

	// Connect to InfluxDB (optional)
	var telemetry gateway.Telemetry
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Wire the transport layer. The simulator reads the broker through a
	// closure because the supervisor that owns the session is built after
	// it.
	var super *gateway.Supervisor

	sim := gateway.NewSimulator(gateway.SimulatorConfig{
		Registry:  registry,
		Logger:    log,
		Interval:  cfg.Simulation.TickInterval,
		MaxDecay:  cfg.Simulation.MaxBatteryDecay,
		Telemetry: telemetry,
		Broker: func() gateway.BrokerConn {
			if super == nil {
				return nil
			}
			return super.Broker()
		},
	})

	dialer := func(mqttCfg config.MQTTConfig) (gateway.BrokerConn, error) {
		client, dialErr := mqtt.Connect(mqttCfg)
		if dialErr != nil {
			return nil, dialErr
		}
		client.SetLogger(log)
		return client, nil
	}

	super = gateway.NewSupervisor(gateway.SupervisorConfig{
		Registry:    registry,
		Simulator:   sim,
		Dialer:      dialer,
		Logger:      log,
		MQTT:        cfg.MQTT,
		Gateway:     cfg.Gateway,
		SettleDelay: cfg.Simulation.SettleDelay,
	})

	engine := gateway.NewEngine(gateway.EngineConfig{
		Registry:  registry,
		Super:     super,
		Telemetry: telemetry,
		Logger:    log,
		QoS:       byte(cfg.MQTT.QoS),
		MinDelay:  cfg.Simulation.FallbackMinDelay,
		MaxDelay:  cfg.Simulation.FallbackMaxDelay,
	})

	// Bring up the configured transport. A dead broker in production mode
	// falls back to simulation inside Start, so this only fails on
	// programming errors.
	if startErr := super.Start(ctx); startErr != nil {
		return fmt.Errorf("starting connection supervisor: %w", startErr)
	}
	defer func() {
		log.Info("stopping connection supervisor")
		super.Stop()
	}()
	log.Info("transport started", "mode", super.Mode())

	// Start the REST API
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Registry: registry,
		Super:    super,
		Engine:   engine,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify infrastructure is healthy
	if err := healthCheck(ctx, db, server, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Connection supervisor (simulator + broker session)
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("ESL gateway stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ESLGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ESLGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure components are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - server: API server to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	// The broker link is supervised separately: production mode falls back
	// to simulation when the broker is unreachable, so it is never a
	// startup failure.

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
