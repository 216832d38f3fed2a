// Package aggregate merges the relational store, the telemetry provider and
// the weather provider into one composite session view.
package aggregate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/metrics"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/sources"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/storage"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

// Store is the part of storage.Repository the service reads from.
type Store interface {
	Session(ctx context.Context, id int64) (f1.Session, error)
	Event(ctx context.Context, id int64) (f1.Event, error)
	Laps(ctx context.Context, sessionID int64, driverID string) ([]f1.LapRecord, error)
}

type (
	TelemetrySource = sources.DataSource[sources.TelemetryKey, f1.LapTelemetry]
	WeatherSource   = sources.DataSource[sources.WeatherKey, f1.WeatherSnapshot]
)

// Spec describes a composite query. The session metadata is always read;
// each sub-source is skipped, optional or required.
type Spec struct {
	SessionID int64
	DriverID  string
	LapNumber int

	Laps      Requirement
	Telemetry Requirement
	Weather   Requirement
}

func (s Spec) Validate() error {
	if s.SessionID < 1 {
		return errors.Wrapf(ErrInvalidSpec, "session id %d", s.SessionID)
	}

	if s.Telemetry != Skip && (s.DriverID == "" || s.LapNumber < 1) {
		return errors.Wrap(ErrInvalidSpec, "telemetry needs a driver and a lap number")
	}

	return nil
}

type Result struct {
	SessionID int64  `json:"session_id"`
	DriverID  string `json:"driver_id,omitempty"`
	LapNumber int    `json:"lap_number,omitempty"`

	Session   Field[f1.Session]         `json:"session"`
	Event     Field[f1.Event]           `json:"event"`
	Laps      Field[[]f1.LapRecord]     `json:"laps"`
	Telemetry Field[f1.LapTelemetry]    `json:"telemetry"`
	Weather   Field[f1.WeatherSnapshot] `json:"weather"`
}

// Service is stateless; it is safe to share between goroutines.
type Service struct {
	store     Store
	telemetry TelemetrySource
	weather   WeatherSource
	logger    logrus.FieldLogger

	now func() time.Time
}

func NewService(store Store, telemetry TelemetrySource, weather WeatherSource, logger logrus.FieldLogger) *Service {
	return &Service{
		store:     store,
		telemetry: telemetry,
		weather:   weather,
		logger:    logger,
		now:       time.Now,
	}
}

// CompositeQuery reads the session from the store, then fetches telemetry
// and weather concurrently. A failing optional source is reported in its
// field; a failing required one fails the whole query.
func (s *Service) CompositeQuery(ctx context.Context, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		metrics.AggregationQueries.WithLabelValues("invalid").Inc()
		return nil, err
	}

	result := &Result{
		SessionID: spec.SessionID,
		DriverID:  spec.DriverID,
		LapNumber: spec.LapNumber,
	}

	s.readStore(ctx, spec, result)

	if spec.Laps == Required && result.Laps.Status == StatusUnavailable {
		return nil, s.failed(spec, SourceDB, result.Laps.err)
	}

	telemetryKey, hasTelemetryKey := s.telemetryKey(spec, result)
	weatherKey, hasWeatherKey := s.weatherKey(spec, result)

	// a plain group: one source failing never cancels the other
	var group errgroup.Group

	if hasTelemetryKey {
		group.Go(func() error {
			telemetry, err := s.telemetry.Fetch(ctx, telemetryKey)

			if err != nil {
				result.Telemetry = fromSource[f1.LapTelemetry](err)
				return err
			}

			// the value may be shared with a cache, sort a copy
			samples := make([]f1.TelemetrySample, len(telemetry.Samples))
			copy(samples, telemetry.Samples)
			f1.SortSamples(samples)
			telemetry.Samples = samples

			result.Telemetry = available(telemetry)

			return nil
		})
	}

	if hasWeatherKey {
		group.Go(func() error {
			weather, err := s.weather.Fetch(ctx, weatherKey)

			if err != nil {
				result.Weather = fromSource[f1.WeatherSnapshot](err)
				return err
			}

			result.Weather = available(weather)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		s.logger.WithError(err).WithField("session", spec.SessionID).Debug("Composite query has a failed source")
	}

	if spec.Telemetry == Required && result.Telemetry.Status == StatusUnavailable {
		return nil, s.failed(spec, SourceTelemetry, result.Telemetry.err)
	}

	if spec.Weather == Required && result.Weather.Status == StatusUnavailable {
		return nil, s.failed(spec, SourceWeather, result.Weather.err)
	}

	metrics.AggregationQueries.WithLabelValues("ok").Inc()
	s.observe(result)

	return result, nil
}

func (s *Service) failed(spec Spec, missing string, cause error) error {
	metrics.AggregationQueries.WithLabelValues("failed").Inc()

	s.logger.WithError(cause).WithFields(logrus.Fields{
		"session": spec.SessionID,
		"missing": missing,
	}).Warn("Composite query failed")

	return &AggregationFailedError{Missing: missing, Cause: cause}
}

func (s *Service) observe(result *Result) {
	metrics.AggregationFieldStatus.WithLabelValues(SourceDB, string(result.Laps.Status)).Inc()
	metrics.AggregationFieldStatus.WithLabelValues(SourceTelemetry, string(result.Telemetry.Status)).Inc()
	metrics.AggregationFieldStatus.WithLabelValues(SourceWeather, string(result.Weather.Status)).Inc()
}

// readStore fills the session, event and laps fields. Store failures other
// than a missing record make the dependent fields unavailable.
func (s *Service) readStore(ctx context.Context, spec Spec, result *Result) {
	session, err := s.store.Session(ctx, spec.SessionID)

	switch {
	case errors.Is(err, storage.ErrNotFound):
		result.Session = notFoundField[f1.Session]("session does not exist")
	case err != nil:
		s.logger.WithError(err).Warnf("Could not read session %d", spec.SessionID)
		result.Session = unavailableField[f1.Session]("session metadata unavailable", err)
	default:
		result.Session = available(session)
	}

	if !result.Session.Available() {
		result.Event = mirror[f1.Event](result.Session, result.Session.Reason)

		if spec.Laps == Skip {
			result.Laps = skipped[[]f1.LapRecord]()
		} else {
			result.Laps = mirror[[]f1.LapRecord](result.Session, result.Session.Reason)
		}

		return
	}

	event, err := s.store.Event(ctx, session.EventID)

	switch {
	case errors.Is(err, storage.ErrNotFound):
		result.Event = notFoundField[f1.Event]("event does not exist")
	case err != nil:
		s.logger.WithError(err).Warnf("Could not read event %d", session.EventID)
		result.Event = unavailableField[f1.Event]("event metadata unavailable", err)
	default:
		result.Event = available(event)
	}

	if spec.Laps == Skip {
		result.Laps = skipped[[]f1.LapRecord]()
		return
	}

	laps, err := s.store.Laps(ctx, spec.SessionID, spec.DriverID)

	if err != nil {
		s.logger.WithError(err).Warnf("Could not read laps of session %d", spec.SessionID)
		result.Laps = unavailableField[[]f1.LapRecord]("laps unavailable", err)

		return
	}

	if laps == nil {
		laps = []f1.LapRecord{}
	}

	f1.SortLaps(laps)
	result.Laps = available(laps)
}

func (s *Service) telemetryKey(spec Spec, result *Result) (sources.TelemetryKey, bool) {
	if spec.Telemetry == Skip {
		result.Telemetry = skipped[f1.LapTelemetry]()
		return sources.TelemetryKey{}, false
	}

	if !result.Session.Available() {
		result.Telemetry = mirror[f1.LapTelemetry](result.Session, result.Session.Reason)
		return sources.TelemetryKey{}, false
	}

	session := *result.Session.Value

	switch {
	case session.Status == f1.SessionStatusUnavailable:
		result.Telemetry = unavailableField[f1.LapTelemetry]("session data is unavailable", errors.Errorf("session %d is marked unavailable", session.ID))
		return sources.TelemetryKey{}, false
	case !session.HasHappened(s.now()):
		result.Telemetry = notFoundField[f1.LapTelemetry]("session has not taken place")
		return sources.TelemetryKey{}, false
	case !result.Event.Available():
		result.Telemetry = mirror[f1.LapTelemetry](result.Event, result.Event.Reason)
		return sources.TelemetryKey{}, false
	}

	event := *result.Event.Value

	return sources.TelemetryKey{
		Season:      event.Year,
		Round:       event.Round,
		SessionType: session.Type,
		Driver:      spec.DriverID,
		Lap:         spec.LapNumber,
	}, true
}

func (s *Service) weatherKey(spec Spec, result *Result) (sources.WeatherKey, bool) {
	if spec.Weather == Skip {
		result.Weather = skipped[f1.WeatherSnapshot]()
		return sources.WeatherKey{}, false
	}

	if !result.Session.Available() {
		result.Weather = mirror[f1.WeatherSnapshot](result.Session, result.Session.Reason)
		return sources.WeatherKey{}, false
	}

	if !result.Event.Available() {
		result.Weather = mirror[f1.WeatherSnapshot](result.Event, result.Event.Reason)
		return sources.WeatherKey{}, false
	}

	event := *result.Event.Value

	if !event.HasCoordinates() {
		result.Weather = notFoundField[f1.WeatherSnapshot]("event has no coordinates")
		return sources.WeatherKey{}, false
	}

	at := result.Session.Value.StartTime

	// a session yet to start gets the current conditions
	if at.After(s.now()) {
		at = time.Time{}
	}

	return sources.NewWeatherKey(event.Latitude, event.Longitude, at), true
}
