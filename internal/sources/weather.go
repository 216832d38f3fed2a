package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

const (
	WeatherSourceName = "weather"

	weatherVariables = "temperature_2m,relative_humidity_2m,wind_speed_10m,wind_direction_10m,precipitation"
	openMeteoTime    = "2006-01-02T15:04"
)

// WeatherKey identifies a weather reading at a location. A zero At asks for
// current conditions.
type WeatherKey struct {
	Latitude  float64
	Longitude float64
	At        time.Time
}

// NewWeatherKey normalises coordinates to four decimals and At to the nearest
// UTC hour, so that equivalent requests share a cache entry.
func NewWeatherKey(latitude, longitude float64, at time.Time) WeatherKey {
	key := WeatherKey{
		Latitude:  math.Round(latitude*1e4) / 1e4,
		Longitude: math.Round(longitude*1e4) / 1e4,
	}

	if !at.IsZero() {
		key.At = at.UTC().Round(time.Hour)
	}

	return key
}

func (k WeatherKey) String() string {
	if k.At.IsZero() {
		return fmt.Sprintf("%.4f,%.4f@now", k.Latitude, k.Longitude)
	}

	return fmt.Sprintf("%.4f,%.4f@%s", k.Latitude, k.Longitude, k.At.Format(time.RFC3339))
}

func (k WeatherKey) Validate() error {
	if k.Latitude < -90 || k.Latitude > 90 || k.Longitude < -180 || k.Longitude > 180 {
		return errors.Wrapf(ErrInvalidKey, "coordinates %s", k)
	}

	return nil
}

type currentWeatherResponse struct {
	Current struct {
		Time          string   `json:"time"`
		Temperature   *float64 `json:"temperature_2m"`
		Humidity      *float64 `json:"relative_humidity_2m"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
		WindDirection *float64 `json:"wind_direction_10m"`
		Precipitation *float64 `json:"precipitation"`
	} `json:"current"`
}

type hourlyWeatherResponse struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Humidity      []*float64 `json:"relative_humidity_2m"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WindDirection []*float64 `json:"wind_direction_10m"`
		Precipitation []*float64 `json:"precipitation"`
	} `json:"hourly"`
}

// WeatherAdapter reads track weather from an Open-Meteo compatible API: the
// forecast endpoint for current conditions and the archive endpoint for a
// past timestamp.
type WeatherAdapter struct {
	forecastURL string
	archiveURL  string
	apiKey      string
	timeout     time.Duration
	client      *http.Client
	logger      logrus.FieldLogger
}

func NewWeatherAdapter(cfg config.Weather, logger logrus.FieldLogger) *WeatherAdapter {
	return &WeatherAdapter{
		forecastURL: cfg.ForecastURL,
		archiveURL:  cfg.ArchiveURL,
		apiKey:      cfg.APIKey,
		timeout:     cfg.Timeout,
		client:      &http.Client{},
		logger:      logger,
	}
}

func (a *WeatherAdapter) Name() string {
	return WeatherSourceName
}

func (a *WeatherAdapter) query(key WeatherKey) url.Values {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(key.Latitude, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(key.Longitude, 'f', 4, 64))
	query.Set("timezone", "GMT")
	query.Set("wind_speed_unit", "kmh")

	if a.apiKey != "" {
		query.Set("apikey", a.apiKey)
	}

	return query
}

func (a *WeatherAdapter) Fetch(ctx context.Context, key WeatherKey) (snapshot f1.WeatherSnapshot, err error) {
	started := time.Now()

	defer func() {
		observe(WeatherSourceName, started, err)
	}()

	if err := key.Validate(); err != nil {
		return f1.WeatherSnapshot{}, notFound(WeatherSourceName, err)
	}

	ctx, cfn := context.WithTimeout(ctx, a.timeout)
	defer cfn()

	if key.At.IsZero() {
		snapshot, err = a.current(ctx, key)
	} else {
		snapshot, err = a.historical(ctx, key)
	}

	if err != nil {
		a.logger.WithError(err).Debugf("Could not fetch weather for %s", key)

		return f1.WeatherSnapshot{}, err
	}

	return snapshot, nil
}

func (a *WeatherAdapter) current(ctx context.Context, key WeatherKey) (f1.WeatherSnapshot, error) {
	query := a.query(key)
	query.Set("current", weatherVariables)

	var resp currentWeatherResponse

	if err := getJSON(ctx, a.client, WeatherSourceName, a.forecastURL, query, &resp); err != nil {
		return f1.WeatherSnapshot{}, err
	}

	current := resp.Current

	if current.Temperature == nil {
		return f1.WeatherSnapshot{}, notFound(WeatherSourceName, errors.New("no current conditions in response"))
	}

	at, err := time.Parse(openMeteoTime, current.Time)

	if err != nil {
		return f1.WeatherSnapshot{}, unavailable(WeatherSourceName, errors.Wrapf(err, "invalid time %q", current.Time))
	}

	return newSnapshot(key, at, current.Temperature, current.Humidity, current.WindSpeed, current.WindDirection, current.Precipitation), nil
}

func (a *WeatherAdapter) historical(ctx context.Context, key WeatherKey) (f1.WeatherSnapshot, error) {
	day := key.At.Format("2006-01-02")

	query := a.query(key)
	query.Set("hourly", weatherVariables)
	query.Set("start_date", day)
	query.Set("end_date", day)

	var resp hourlyWeatherResponse

	// the archive answers 400 for dates it does not cover
	if err := getJSON(ctx, a.client, WeatherSourceName, a.archiveURL, query, &resp, http.StatusBadRequest); err != nil {
		return f1.WeatherSnapshot{}, err
	}

	hourly := resp.Hourly
	nearest := -1

	var (
		nearestAt   time.Time
		nearestDiff time.Duration
	)

	for i, raw := range hourly.Time {
		at, err := time.Parse(openMeteoTime, raw)

		if err != nil {
			return f1.WeatherSnapshot{}, unavailable(WeatherSourceName, errors.Wrapf(err, "invalid time %q", raw))
		}

		diff := at.Sub(key.At)

		if diff < 0 {
			diff = -diff
		}

		if nearest < 0 || diff < nearestDiff {
			nearest, nearestAt, nearestDiff = i, at, diff
		}
	}

	if nearest < 0 || nearestDiff > time.Hour {
		return f1.WeatherSnapshot{}, notFound(WeatherSourceName, errors.Errorf("no hourly reading near %s", key.At.Format(time.RFC3339)))
	}

	reading := func(values []*float64) *float64 {
		if nearest < len(values) {
			return values[nearest]
		}

		return nil
	}

	temperature := reading(hourly.Temperature)

	if temperature == nil {
		return f1.WeatherSnapshot{}, notFound(WeatherSourceName, errors.Errorf("hour %s has no reading", nearestAt.Format(time.RFC3339)))
	}

	return newSnapshot(key, nearestAt, temperature, reading(hourly.Humidity), reading(hourly.WindSpeed), reading(hourly.WindDirection), reading(hourly.Precipitation)), nil
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}

	return *v
}

func newSnapshot(key WeatherKey, at time.Time, temperature, humidity, windSpeed, windDirection, precipitation *float64) f1.WeatherSnapshot {
	return f1.WeatherSnapshot{
		Latitude:      key.Latitude,
		Longitude:     key.Longitude,
		Time:          at.UTC(),
		Temperature:   value(temperature),
		Humidity:      value(humidity),
		WindSpeed:     value(windSpeed),
		WindDirection: value(windDirection),
		Precipitation: value(precipitation),
		Raining:       value(precipitation) > 0,
	}
}
