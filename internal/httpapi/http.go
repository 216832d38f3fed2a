// Package httpapi exposes the aggregation service, the catalogue reads and the
// live store over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-http-utils/etag"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/aggregate"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/live"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/sources"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Aggregator interface {
	CompositeQuery(ctx context.Context, spec aggregate.Spec) (*aggregate.Result, error)
}

// Catalogue is the read side of storage.Repository.
type Catalogue interface {
	AvailableYears(ctx context.Context) ([]int, error)
	EventsByYear(ctx context.Context, year int) ([]f1.Event, error)
	EventByRound(ctx context.Context, year, round int) (f1.Event, error)
	SessionsForEvent(ctx context.Context, eventID int64) ([]f1.Session, error)
	Laps(ctx context.Context, sessionID int64, driverID string) ([]f1.LapRecord, error)

	Teams(ctx context.Context, year int) ([]f1.Team, error)
	Drivers(ctx context.Context, year int, teamID int64) ([]f1.Driver, error)
	Results(ctx context.Context, sessionID int64) ([]f1.RaceResult, error)
	DriverStandings(ctx context.Context, year int) ([]f1.DriverStanding, error)
	ConstructorStandings(ctx context.Context, year int) ([]f1.ConstructorStanding, error)
}

type WeatherReader interface {
	Fetch(ctx context.Context, key sources.WeatherKey) (f1.WeatherSnapshot, error)
}

type LiveReader interface {
	Snapshot(keys ...live.Key) map[live.Key]live.Entry
	SessionSnapshot(sessionID string) map[live.Key]live.Entry
}

type Simulation interface {
	Start(interval time.Duration) live.State
	Stop() live.State
	State() live.State
	Interval() time.Duration
	Targets() []live.Target
	Track(target live.Target) error
}

type HTTP struct {
	server *http.Server
	logger logrus.FieldLogger
	config config.HTTP

	aggregator Aggregator
	catalogue  Catalogue
	weather    WeatherReader
	live       LiveReader
	simulation Simulation

	weatherConfig      config.Weather
	simulationInterval time.Duration
}

func NewHTTP(cfg config.HTTP, weatherConfig config.Weather, aggregator Aggregator, catalogue Catalogue, weather WeatherReader, liveReader LiveReader, simulation Simulation, simulationInterval time.Duration, logger logrus.FieldLogger) *HTTP {
	return &HTTP{
		config:             cfg,
		aggregator:         aggregator,
		catalogue:          catalogue,
		weather:            weather,
		live:               liveReader,
		simulation:         simulation,
		weatherConfig:      weatherConfig,
		simulationInterval: simulationInterval,
		logger:             logger,
	}
}

// Listen serves in the background until Shutdown.
func (h *HTTP) Listen() error {
	h.logger.Infof("HTTP server listening on: %s", h.config.Address)

	h.server = &http.Server{
		Handler:           h.Router(),
		Addr:              h.config.Address,
		ReadHeaderTimeout: h.config.ReadHeaderTimeout,
	}

	go func() {
		err := h.server.ListenAndServe()

		if err == http.ErrServerClosed {
			return
		} else if err != nil {
			h.logger.WithError(err).Errorf("Could not start HTTP server")
		}
	}()

	return nil
}

func (h *HTTP) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}

	return h.server.Shutdown(ctx)
}

func (h *HTTP) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(h.requestLogger)

	router.Route("/api", func(r chi.Router) {
		r.Get("/years", h.years)
		r.Get("/years/{year}/events", h.events)
		r.Get("/years/{year}/rounds/{round}", h.eventByRound)
		r.Get("/years/{year}/teams", h.teams)
		r.Get("/years/{year}/drivers", h.drivers)
		r.Get("/years/{year}/standings/drivers", h.driverStandings)
		r.Get("/years/{year}/standings/constructors", h.constructorStandings)
		r.Get("/events/{id}/sessions", h.sessions)
		r.Get("/sessions/{id}/overview", h.overview)
		r.Get("/sessions/{id}/laps", h.laps)
		r.Get("/sessions/{id}/results", h.results)
		r.Get("/sessions/{id}/telemetry/{driver}/{lap}", h.telemetry)

		r.Get("/weather/current", h.currentWeather)

		r.Method(http.MethodGet, "/live", etag.Handler(http.HandlerFunc(h.liveSnapshot), false))

		r.Get("/simulation", h.simulationState)
		r.Post("/simulation/start", h.simulationStart)
		r.Post("/simulation/stop", h.simulationStop)
		r.Post("/simulation/targets", h.simulationTrack)
	})

	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debugf("Could not find HTTP response for URL: %s", r.URL.String())

		http.NotFound(w, r)
	})

	return router
}
