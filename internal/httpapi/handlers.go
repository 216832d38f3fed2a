package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/aggregate"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/live"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/sources"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/storage"
)

var (
	errBadRequest = errors.New("httpapi: bad request")
	errNotFound   = errors.New("httpapi: not found")
)

type errorResponse struct {
	Error     string `json:"error"`
	Missing   string `json:"missing,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Could not encode response")
	}
}

// writeError maps the storage and aggregation failures to statuses.
func (h *HTTP) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error(), RequestID: requestID(r)}
	status := http.StatusInternalServerError

	var failed *aggregate.AggregationFailedError

	if errors.As(err, &failed) {
		resp.Missing = failed.Missing
	}

	switch {
	case errors.Is(err, storage.ErrPoolExhausted):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	case errors.Is(err, errBadRequest), errors.Is(err, aggregate.ErrInvalidSpec), errors.Is(err, live.ErrInvalidTarget), errors.Is(err, sources.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, aggregate.ErrAggregationFailed), errors.Is(err, sources.ErrUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, sources.ErrNotFound), errors.Is(err, errNotFound):
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("request_id", resp.RequestID).Errorf("Request to %s failed", r.URL.Path)
	}

	h.writeJSON(w, status, resp)
}

func intParam(r *http.Request, name string) (int64, error) {
	value, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)

	if err != nil || value < 1 {
		return 0, errors.Wrapf(errBadRequest, "invalid %s %q", name, chi.URLParam(r, name))
	}

	return value, nil
}

func (h *HTTP) years(w http.ResponseWriter, r *http.Request) {
	years, err := h.catalogue.AvailableYears(r.Context())

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if years == nil {
		years = []int{}
	}

	h.writeJSON(w, http.StatusOK, years)
}

func (h *HTTP) events(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.catalogue.EventsByYear(r.Context(), int(year))

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, events)
}

func (h *HTTP) sessions(w http.ResponseWriter, r *http.Request) {
	eventID, err := intParam(r, "id")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sessions, err := h.catalogue.SessionsForEvent(r.Context(), eventID)

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sessions)
}

// overview serves the composite session view. Query parameters: driver, lap
// and one of skip, optional or required for laps, telemetry and weather.
func (h *HTTP) overview(w http.ResponseWriter, r *http.Request) {
	sessionID, err := intParam(r, "id")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	query := r.URL.Query()

	spec := aggregate.Spec{
		SessionID: sessionID,
		DriverID:  query.Get("driver"),
	}

	if lap := query.Get("lap"); lap != "" {
		if spec.LapNumber, err = strconv.Atoi(lap); err != nil {
			h.writeError(w, r, errors.Wrapf(errBadRequest, "invalid lap %q", lap))
			return
		}
	}

	telemetryDefault := aggregate.Skip

	if spec.DriverID != "" && spec.LapNumber > 0 {
		telemetryDefault = aggregate.Optional
	}

	requirements := []struct {
		name     string
		fallback aggregate.Requirement
		into     *aggregate.Requirement
	}{
		{"laps", aggregate.Optional, &spec.Laps},
		{"telemetry", telemetryDefault, &spec.Telemetry},
		{"weather", aggregate.Optional, &spec.Weather},
	}

	for _, requirement := range requirements {
		value, err := aggregate.ParseRequirement(query.Get(requirement.name), requirement.fallback)

		if err != nil {
			h.writeError(w, r, errors.Wrapf(errBadRequest, "invalid %s requirement %q", requirement.name, query.Get(requirement.name)))
			return
		}

		*requirement.into = value
	}

	result, err := h.aggregator.CompositeQuery(r.Context(), spec)

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// liveSnapshot returns the entries of one session (?session=), of the given
// keys (?key=, repeated) or of every key.
func (h *HTTP) liveSnapshot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var snapshot map[live.Key]live.Entry

	if session := query.Get("session"); session != "" {
		snapshot = h.live.SessionSnapshot(session)
	} else {
		var keys []live.Key

		for _, key := range query["key"] {
			keys = append(keys, live.Key(key))
		}

		snapshot = h.live.Snapshot(keys...)
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

type simulationResponse struct {
	State    live.State    `json:"state"`
	Interval string        `json:"interval,omitempty"`
	Targets  []live.Target `json:"targets"`
}

func (h *HTTP) writeSimulation(w http.ResponseWriter, state live.State) {
	resp := simulationResponse{
		State:   state,
		Targets: h.simulation.Targets(),
	}

	if state == live.Running {
		resp.Interval = h.simulation.Interval().String()
	}

	if resp.Targets == nil {
		resp.Targets = []live.Target{}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *HTTP) simulationState(w http.ResponseWriter, r *http.Request) {
	h.writeSimulation(w, h.simulation.State())
}

func (h *HTTP) simulationStart(w http.ResponseWriter, r *http.Request) {
	interval := h.simulationInterval

	if raw := r.URL.Query().Get("interval"); raw != "" {
		parsed, err := time.ParseDuration(raw)

		if err != nil || parsed <= 0 {
			h.writeError(w, r, errors.Wrapf(errBadRequest, "invalid interval %q", raw))
			return
		}

		interval = parsed
	}

	h.writeSimulation(w, h.simulation.Start(interval))
}

func (h *HTTP) simulationStop(w http.ResponseWriter, r *http.Request) {
	h.writeSimulation(w, h.simulation.Stop())
}

func (h *HTTP) simulationTrack(w http.ResponseWriter, r *http.Request) {
	var target live.Target

	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		h.writeError(w, r, errors.Wrap(errBadRequest, err.Error()))
		return
	}

	if err := h.simulation.Track(target); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSimulation(w, h.simulation.State())
}
