package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/objrecord/internal/api"
	"github.com/nerrad567/objrecord/internal/changefeed"
	"github.com/nerrad567/objrecord/internal/infrastructure/config"
	"github.com/nerrad567/objrecord/internal/infrastructure/database"
	"github.com/nerrad567/objrecord/internal/infrastructure/influxdb"
	"github.com/nerrad567/objrecord/internal/infrastructure/logging"
	"github.com/nerrad567/objrecord/internal/infrastructure/metrics"
	"github.com/nerrad567/objrecord/internal/infrastructure/mqtt"
	"github.com/nerrad567/objrecord/internal/record"
)

// ServeCmd runs the inspection API until interrupted.
type ServeCmd struct{}

func (c *ServeCmd) Run(rc *runContext) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting objrecord",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(rc.globals, config.Load)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", rc.globals.Config)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	return serve(rc.ctx, cfg, log)
}

// serve wires the adapter, telemetry sinks, change feed and API server,
// then blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logging.Logger) error { //nolint:gocognit // Startup wiring: each optional component adds a branch
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database opened", "path", db.Path(), "driver", db.Driver())

	var (
		tracers    []database.QueryTracer
		observers  []record.Observer
		gatherer   prometheus.Gatherer
		components = map[string]api.HealthChecker{}
	)

	// Prometheus collectors (optional)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New()
		if regErr := m.Register(reg); regErr != nil {
			return fmt.Errorf("registering metrics: %w", regErr)
		}
		tracers = append(tracers, m)
		observers = append(observers, m)
		gatherer = reg
		log.Info("metrics enabled")
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		tracers = append(tracers, influxClient)
		observers = append(observers, influxClient)
		components["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	db.SetTracer(database.Tracers(tracers...))

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	feedOpts := []changefeed.Option{changefeed.WithBroadcaster(hub)}

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		feedOpts = append(feedOpts, changefeed.WithPublisher(mqttClient, mqttClient.Topics(), mqttClient.QoS()))
		components["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topics", mqttClient.Topics().AllRecords(),
		)
	} else {
		log.Info("MQTT disabled")
	}

	observers = append(observers, changefeed.New(feedOpts...))

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		DB:         database.Synchronized(db),
		Hub:        hub,
		Observer:   record.Observers(observers...),
		Metrics:    gatherer,
		Components: components,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if cfg.API.Auth.JWTSecret == "" {
		log.Warn("api.auth.jwt_secret is empty; API authentication is disabled")
	}
	log.Info("objrecord ready", "address", srv.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}
