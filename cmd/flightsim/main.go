// cmd/flightsim/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/entity"
	"github.com/opd-ai/go-arcadeflight/pkg/event"
	"github.com/opd-ai/go-arcadeflight/pkg/health"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
	"github.com/opd-ai/go-arcadeflight/pkg/network"
	"github.com/opd-ai/go-arcadeflight/pkg/resource"
	"github.com/opd-ai/go-arcadeflight/pkg/snapshot"
	"github.com/opd-ai/go-arcadeflight/pkg/validation"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "config.json", "Path to configuration file")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	flag.Parse()

	if *createDefault {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err,
				"config_path", *configPath,
			)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file",
			"config_path", *configPath,
		)
		return
	}

	simConfig, err := loadSimConfig(ctx, logger, *configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err,
			"config_path", *configPath,
		)
		os.Exit(1)
	}

	envConfig, err := config.LoadConfigFromEnv()
	if err != nil {
		logger.Error(ctx, "Failed to load environment configuration", err)
		os.Exit(1)
	}

	catalog, err := entity.NewCatalog(envConfig.ProfileCacheSize)
	if err != nil {
		logger.Error(ctx, "Failed to create profile catalog", err)
		os.Exit(1)
	}

	world, err := engine.NewWorld(simConfig, catalog, logger)
	if err != nil {
		logger.Error(ctx, "Failed to create world", err)
		os.Exit(1)
	}
	logEvents(world, logger)

	supervisor := resource.NewSupervisor(envConfig, logger)
	if err := supervisor.Start(); err != nil {
		logger.Error(ctx, "Failed to start supervisor", err)
		os.Exit(1)
	}

	var store *snapshot.Store
	if simConfig.Snapshot.Enabled {
		store, err = snapshot.NewStore(simConfig.Snapshot.Dir, envConfig, logger)
		if err != nil {
			logger.Error(ctx, "Failed to open snapshot store", err,
				"dir", simConfig.Snapshot.Dir,
			)
			os.Exit(1)
		}
		if simConfig.Snapshot.Keep > 0 {
			store.SetKeep(simConfig.Snapshot.Keep)
		}
		if simConfig.Snapshot.RestoreOnStart {
			if _, err := world.RestoreLatest(ctx, store); err != nil {
				logger.Error(ctx, "Failed to restore snapshot", err, "dir", store.Dir())
				os.Exit(1)
			}
		}
	}

	var validator *validation.MessageValidator
	if simConfig.Control.Enabled {
		validator = validation.NewMessageValidator(simConfig.Control.MaxRequestsPerMinute)
		defer validator.Close()
	}

	healthServer := &http.Server{
		Addr:         simConfig.Health.Addr,
		Handler:      newMux(world, supervisor, store, validator, simConfig, logger),
		ReadTimeout:  envConfig.HTTPTimeout,
		WriteTimeout: envConfig.HTTPTimeout,
	}

	go func() {
		logger.Info(ctx, "Starting health check server",
			"addr", simConfig.Health.Addr,
			"control_api", simConfig.Control.Enabled,
		)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Health check server failed", err)
		}
	}()

	logger.Info(ctx, "Starting simulation",
		"tick_rate", simConfig.TickRate,
		"workers", simConfig.Workers,
		"vehicles", len(world.Vehicles()),
	)
	if err := supervisor.Go("simulation", world.Run); err != nil {
		logger.Error(ctx, "Failed to start simulation", err)
		os.Exit(1)
	}
	if store != nil {
		interval := time.Duration(simConfig.Snapshot.IntervalSeconds * float64(time.Second))
		err := supervisor.Go("snapshots", func(ctx context.Context) error {
			return world.RunSnapshots(ctx, store, interval)
		})
		if err != nil {
			logger.Error(ctx, "Failed to start snapshot loop", err)
			os.Exit(1)
		}
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info(ctx, "Shutting down simulation")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), envConfig.ShutdownTimeout)
	defer cancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Health check server shutdown failed", err)
	}
	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Supervisor shutdown failed", err)
	}

	stats := world.Stats()
	logger.Info(ctx, "Simulation stopped",
		"ticks", stats.Ticks,
		"stalls_entered", stats.StallsEntered,
		"corrupted_ticks", stats.CorruptedTicks,
	)
}

// loadSimConfig reads path, falling back to the defaults when it does not
// exist, and applies FLIGHT_* overrides
func loadSimConfig(ctx context.Context, logger *logging.Logger, path string) (*config.SimConfig, error) {
	var simConfig *config.SimConfig
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", path,
		)
		simConfig = config.DefaultConfig()
	} else {
		simConfig, err = config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnvironmentOverrides(simConfig); err != nil {
		return nil, logging.WrapError(err, "applying environment overrides")
	}
	if err := simConfig.Validate(); err != nil {
		return nil, err
	}
	return simConfig, nil
}

// newMux mounts health, stats and, when enabled, the control API
func newMux(world *engine.World, supervisor *resource.Supervisor, store *snapshot.Store,
	validator *validation.MessageValidator, simConfig *config.SimConfig, logger *logging.Logger) *http.ServeMux {
	checker := health.NewHealthChecker()

	// a world that has not ticked for a second is considered stuck
	checker.AddCheck(health.NewEngineHealthCheck(
		world.Running,
		func() time.Time { return world.Stats().LastTick },
		time.Second,
	))
	checker.AddCheck(health.NewIntegrityHealthCheck(
		simConfig.Health.MaxCorruptedRatio,
		func() float64 { return world.Stats().CorruptedRatio() },
	))
	if store != nil {
		checker.AddCheck(health.NewSnapshotHealthCheck(store.State))
	}
	checker.AddCheck(health.NewMemoryHealthCheck(supervisor.Stats().MaxMemoryMB, supervisor.MemoryUsage))
	checker.AddCheck(resource.NewSupervisorHealthCheck(supervisor))

	stats := health.NewStatsHandler(func() any {
		return struct {
			World      engine.Stats   `json:"world"`
			Supervisor resource.Stats `json:"supervisor"`
		}{world.Stats(), supervisor.Stats()}
	})

	mux := health.NewMux(checker, stats)
	if validator != nil {
		network.NewControlServer(world, validator, logger).Register(mux)
	}
	return mux
}

// logEvents writes notable world events to the log
func logEvents(world *engine.World, logger *logging.Logger) {
	ctx := context.Background()
	world.EventBus.Subscribe(event.StallEntered, func(e event.Event) {
		if se, ok := e.(*event.StallEvent); ok {
			logger.Warn(ctx, "Vehicle stalled",
				"vehicle_id", se.VehicleID,
				"tick", se.Tick,
				"forward_speed", se.ForwardSpeed,
				"threshold", se.Threshold,
			)
		}
	})
	world.EventBus.Subscribe(event.StallRecovered, func(e event.Event) {
		if se, ok := e.(*event.StallEvent); ok {
			logger.Info(ctx, "Vehicle recovered from stall",
				"vehicle_id", se.VehicleID,
				"tick", se.Tick,
				"forward_speed", se.ForwardSpeed,
			)
		}
	})
	world.EventBus.Subscribe(event.TickCorrupted, func(e event.Event) {
		if ce, ok := e.(*event.CorruptionEvent); ok {
			logger.Warn(ctx, "Vehicle state recovered from corruption",
				"vehicle_id", ce.VehicleID,
				"tick", ce.Tick,
				"reason", ce.Reason,
			)
		}
	})
	world.EventBus.Subscribe(event.SnapshotSaved, func(e event.Event) {
		if se, ok := e.(*event.SnapshotEvent); ok {
			logger.Debug(ctx, "Snapshot saved", "path", se.Path, "tick", se.Tick)
		}
	})
}
