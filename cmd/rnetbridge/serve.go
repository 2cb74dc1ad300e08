package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-rnet/internal/api"
	"github.com/nerrad567/gray-logic-rnet/internal/audit"
	"github.com/nerrad567/gray-logic-rnet/internal/bridge"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
	"github.com/nerrad567/gray-logic-rnet/internal/zone"
	"github.com/nerrad567/gray-logic-rnet/migrations"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to the YAML configuration file")
	return cmd
}

// getConfigPath returns RNETBRIDGE_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("RNETBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run starts every component and blocks until ctx is cancelled.
// Components are stopped in reverse start order.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting RNet bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // best effort on exit
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"output", cfg.Logging.Output,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	registry := zone.NewRegistry(zone.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.With("component", "zones"))
	if err := registry.SeedZones(ctx, configuredZones(cfg)); err != nil {
		return fmt.Errorf("seeding zones: %w", err)
	}
	if err := registry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading zone registry: %w", err)
	}

	commandLog := audit.NewSQLiteRepository(db.DB)

	manager, err := rnet.NewManager(rnet.ManagerConfig{
		Connection:     cfg.RNet.Connection,
		RetryDelay:     cfg.GetRetryDelay(),
		ConnectTimeout: cfg.GetConnectTimeout(),
		WriteTimeout:   cfg.GetRNetWriteTimeout(),
		SerialBaud:     cfg.RNet.SerialBaud,
	}, nil)
	if err != nil {
		return fmt.Errorf("configuring rnet: %w", err)
	}
	manager.SetLogger(log.With("component", "rnet"))

	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	promRegistry := metrics.NewRegistry()
	metrics.RegisterManager(promRegistry, manager)

	b, err := bridge.New(bridge.Options{
		BridgeID:        cfg.Bridge.ID,
		Version:         version,
		HealthInterval:  cfg.GetHealthInterval(),
		RefreshInterval: cfg.GetRefreshInterval(),
		QueryRate:       cfg.Bridge.QueryRate,
		MQTTClient:      mqttClient,
		Engine:          manager,
		Registry:        registry,
		Metrics:         metrics.NewBridgeMetrics(promRegistry),
		CommandLog:      commandLog,
		Logger:          log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	manager.SetListener(b)
	mqttClient.SetOnConnect(b.Health().Trigger)
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()

	manager.Connect(ctx)
	defer func() {
		log.Info("disconnecting from rnet")
		if discErr := manager.Disconnect(); discErr != nil {
			log.Error("error closing rnet transport", "error", discErr)
		}
	}()

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.With("component", "api"),
			Engine:   manager,
			MQTT:     mqttClient,
			Zones:    registry,
			Commands: b,
			History:  commandLog,
			Metrics:  metrics.Handler(promRegistry),
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"rnet", manager.Endpoint().String(),
		"zones", len(registry.ZoneIDs()))

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// configuredZones converts the zone list from config.
func configuredZones(cfg *config.Config) []zone.Zone {
	zones := make([]zone.Zone, 0, len(cfg.RNet.Zones))
	for _, z := range cfg.RNet.Zones {
		zones = append(zones, zone.Zone{Controller: z.Controller, Zone: z.Zone, Name: z.Name})
	}
	return zones
}

// connectMQTT connects with the bridge's offline status as Last Will.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	lwt, err := bridge.LWTPayload(cfg.Bridge.ID)
	if err != nil {
		return nil, err
	}

	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
		Topic:   mqtt.Topics{}.Health(),
		Payload: lwt,
		QoS:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// healthCheck verifies the hard dependencies. RNet is not checked: the
// manager keeps retrying in the background and reports through health.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}
