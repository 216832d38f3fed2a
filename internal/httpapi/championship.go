package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/aggregate"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/sources"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

func (h *HTTP) eventByRound(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	round, err := intParam(r, "round")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	event, err := h.catalogue.EventByRound(r.Context(), int(year), int(round))

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, event)
}

func (h *HTTP) teams(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	teams, err := h.catalogue.Teams(r.Context(), int(year))

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if teams == nil {
		teams = []f1.Team{}
	}

	h.writeJSON(w, http.StatusOK, teams)
}

// drivers lists a season's drivers, optionally of one team (?team=).
func (h *HTTP) drivers(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var teamID int64

	if team := r.URL.Query().Get("team"); team != "" {
		if teamID, err = strconv.ParseInt(team, 10, 64); err != nil || teamID < 1 {
			h.writeError(w, r, errors.Wrapf(errBadRequest, "invalid team %q", team))
			return
		}
	}

	drivers, err := h.catalogue.Drivers(r.Context(), int(year), teamID)

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if drivers == nil {
		drivers = []f1.Driver{}
	}

	h.writeJSON(w, http.StatusOK, drivers)
}

func (h *HTTP) driverStandings(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	standings, err := h.catalogue.DriverStandings(r.Context(), int(year))

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if standings == nil {
		standings = []f1.DriverStanding{}
	}

	h.writeJSON(w, http.StatusOK, standings)
}

func (h *HTTP) constructorStandings(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	standings, err := h.catalogue.ConstructorStandings(r.Context(), int(year))

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if standings == nil {
		standings = []f1.ConstructorStanding{}
	}

	h.writeJSON(w, http.StatusOK, standings)
}

func (h *HTTP) results(w http.ResponseWriter, r *http.Request) {
	sessionID, err := intParam(r, "id")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results, err := h.catalogue.Results(r.Context(), sessionID)

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if results == nil {
		results = []f1.RaceResult{}
	}

	h.writeJSON(w, http.StatusOK, results)
}

// laps serves the stored laps of a session, of one driver with ?driver=.
func (h *HTTP) laps(w http.ResponseWriter, r *http.Request) {
	sessionID, err := intParam(r, "id")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	laps, err := h.catalogue.Laps(r.Context(), sessionID, strings.ToUpper(r.URL.Query().Get("driver")))

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if laps == nil {
		laps = []f1.LapRecord{}
	}

	h.writeJSON(w, http.StatusOK, laps)
}

// telemetry serves the samples of one lap. It goes through the aggregator so
// the session is resolved to its season, round and type the same way the
// overview does.
func (h *HTTP) telemetry(w http.ResponseWriter, r *http.Request) {
	sessionID, err := intParam(r, "id")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lap, err := intParam(r, "lap")

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.aggregator.CompositeQuery(r.Context(), aggregate.Spec{
		SessionID: sessionID,
		DriverID:  strings.ToUpper(chi.URLParam(r, "driver")),
		LapNumber: int(lap),
		Laps:      aggregate.Skip,
		Telemetry: aggregate.Required,
		Weather:   aggregate.Skip,
	})

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if !result.Telemetry.Available() {
		h.writeError(w, r, errors.Wrap(errNotFound, result.Telemetry.Reason))
		return
	}

	h.writeJSON(w, http.StatusOK, result.Telemetry.Value)
}

func floatParam(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)

	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseFloat(raw, 64)

	if err != nil {
		return 0, errors.Wrapf(errBadRequest, "invalid %s %q", name, raw)
	}

	return value, nil
}

// currentWeather serves the conditions now at ?latitude= and ?longitude=,
// defaulting to the configured position.
func (h *HTTP) currentWeather(w http.ResponseWriter, r *http.Request) {
	latitude, err := floatParam(r, "latitude", h.weatherConfig.DefaultLatitude)

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	longitude, err := floatParam(r, "longitude", h.weatherConfig.DefaultLongitude)

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	key := sources.NewWeatherKey(latitude, longitude, time.Time{})

	if err := key.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	weather, err := h.weather.Fetch(r.Context(), key)

	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, weather)
}
