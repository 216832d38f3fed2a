package main

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/storage"
)

var (
	configPath  string
	fixturePath string
	reseed      int64
)

func init() {
	flag.StringVar(&configPath, "c", "./config.yml", "config path")
	flag.StringVar(&fixturePath, "f", "./fixtures.yml", "fixture path")
	flag.Int64Var(&reseed, "reseed", 0, "replace the laps of this session with the fixture's laps")
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

	fixture, err := storage.LoadFixture(fixturePath)

	if err != nil {
		logger.WithError(err).Fatalf("Could not read fixture at %s", fixturePath)
	}

	pool, err := storage.Open(cfg.Database, logger)

	if err != nil {
		logger.WithError(err).Fatal("Could not open database")
	}

	defer pool.Close()

	ctx := context.Background()
	repository := storage.NewRepository(pool, storage.NewExecutor(logger), logger)

	if err := repository.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("Could not migrate database")
	}

	if reseed > 0 {
		session, ok := fixture.FindSession(reseed)

		if !ok {
			logger.Fatalf("Session %d is not in %s", reseed, fixturePath)
		}

		laps, err := session.LapRecords()

		if err != nil {
			logger.WithError(err).Fatal("Could not read fixture laps")
		}

		if err := repository.ReseedLaps(ctx, reseed, laps); err != nil {
			logger.WithError(err).Fatalf("Could not reseed session %d", reseed)
		}

		logger.Infof("Reseeded %d laps of session %d", len(laps), reseed)

		return
	}

	if err := repository.Seed(ctx, fixture); err != nil {
		logger.WithError(err).Fatal("Could not seed database")
	}
}
