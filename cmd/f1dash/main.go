package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/aggregate"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/httpapi"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/live"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/sources"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/storage"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "c", "./config.yml", "config path")
	flag.Parse()
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load(configPath)

	if err != nil {
		logger.WithError(err).Fatalf("Could not read config at %s", configPath)
	}

	logger.SetLevel(cfg.Level())

	pool, err := storage.Open(cfg.Database, logger)

	if err != nil {
		logger.WithError(err).Fatal("Could not open database")
	}

	defer pool.Close()

	repository := storage.NewRepository(pool, storage.NewExecutor(logger), logger)

	if err := repository.Migrate(context.Background()); err != nil {
		logger.WithError(err).Fatal("Could not migrate database")
	}

	disk, err := sources.OpenDiskCache(cfg.Telemetry.CacheDir, logger)

	if err != nil {
		logger.WithError(err).Fatal("Could not open telemetry cache")
	}

	defer disk.Close()

	telemetry := sources.NewCached[sources.TelemetryKey, f1.LapTelemetry](
		sources.NewTelemetryAdapter(cfg.Telemetry, disk, logger),
		cfg.Telemetry.CacheSize,
		cfg.Telemetry.CacheTTL,
	)

	weather := sources.NewCached[sources.WeatherKey, f1.WeatherSnapshot](
		sources.NewWeatherAdapter(cfg.Weather, logger),
		cfg.Weather.CacheSize,
		cfg.Weather.CacheTTL,
	)

	service := aggregate.NewService(repository, telemetry, weather, logger)

	store := live.NewStore()
	engine := live.NewEngine(store, cfg.Simulation.Seed, logger)

	for _, target := range cfg.Simulation.Targets {
		if err := engine.Track(live.TargetFromConfig(target)); err != nil {
			logger.WithError(err).Warnf("Ignoring simulation target %s", target.SessionID)
		}
	}

	if cfg.Simulation.Enabled {
		engine.Start(cfg.Simulation.Interval)
	}

	server := httpapi.NewHTTP(cfg.HTTP, cfg.Weather, service, repository, weather, store, engine, cfg.Simulation.Interval, logger)

	if err := server.Listen(); err != nil {
		logger.WithError(err).Fatal("Could not start HTTP server")
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c

	logger.Infof("Shutting down")

	engine.Stop()

	ctx, cfn := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cfn()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Could not shut down HTTP server cleanly")
	}

	logger.Infof("Server stopped. Exiting")
}
