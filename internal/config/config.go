// Package config loads the dashboard configuration from a YAML file, with
// environment variable overrides.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type Config struct {
	LogLevel string `json:"log_level" yaml:"log_level" env:"F1_LOG_LEVEL"`

	Database   Database   `json:"database" yaml:"database"`
	Telemetry  Telemetry  `json:"telemetry" yaml:"telemetry"`
	Weather    Weather    `json:"weather" yaml:"weather"`
	Simulation Simulation `json:"simulation" yaml:"simulation"`
	HTTP       HTTP       `json:"http" yaml:"http"`
}

type Database struct {
	Path           string        `json:"path" yaml:"path" env:"SQLITE_DB_PATH"`
	PoolSize       int           `json:"pool_size" yaml:"pool_size" env:"F1_DB_POOL_SIZE"`
	AcquireTimeout time.Duration `json:"acquire_timeout" yaml:"acquire_timeout" env:"F1_DB_ACQUIRE_TIMEOUT"`
	BusyTimeout    time.Duration `json:"busy_timeout" yaml:"busy_timeout" env:"F1_DB_BUSY_TIMEOUT"`
}

type Telemetry struct {
	BaseURL   string        `json:"base_url" yaml:"base_url" env:"F1_TELEMETRY_URL"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" env:"F1_TELEMETRY_TIMEOUT"`
	CacheDir  string        `json:"cache_dir" yaml:"cache_dir" env:"FASTF1_CACHE_DIR"`
	CacheTTL  time.Duration `json:"cache_ttl" yaml:"cache_ttl" env:"F1_TELEMETRY_CACHE_TTL"`
	CacheSize int           `json:"cache_size" yaml:"cache_size" env:"F1_TELEMETRY_CACHE_SIZE"`
}

type Weather struct {
	ForecastURL string        `json:"forecast_url" yaml:"forecast_url" env:"WEATHER_SERVICE_URL"`
	ArchiveURL  string        `json:"archive_url" yaml:"archive_url" env:"WEATHER_ARCHIVE_URL"`
	APIKey      string        `json:"api_key" yaml:"api_key" env:"WEATHER_API_KEY"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" env:"WEATHER_TIMEOUT"`
	CacheTTL    time.Duration `json:"cache_ttl" yaml:"cache_ttl" env:"WEATHER_CACHE_TTL"`
	CacheSize   int           `json:"cache_size" yaml:"cache_size" env:"WEATHER_CACHE_SIZE"`

	// DefaultLatitude and DefaultLongitude locate current weather requests
	// that name no position.
	DefaultLatitude  float64 `json:"default_latitude" yaml:"default_latitude" env:"WEATHER_LATITUDE"`
	DefaultLongitude float64 `json:"default_longitude" yaml:"default_longitude" env:"WEATHER_LONGITUDE"`
}

type Simulation struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" env:"F1_SIMULATION_ENABLED"`
	Interval time.Duration `json:"interval" yaml:"interval" env:"F1_SIMULATION_INTERVAL"`
	Seed     int64         `json:"seed" yaml:"seed" env:"F1_SIMULATION_SEED"`

	Targets []SimulationTarget `json:"targets" yaml:"targets"`
}

// SimulationTarget describes one session the simulation engine produces live data for.
type SimulationTarget struct {
	SessionID   string        `json:"session_id" yaml:"session_id"`
	Drivers     []string      `json:"drivers" yaml:"drivers"`
	TotalLaps   int           `json:"total_laps" yaml:"total_laps"`
	BaseLapTime time.Duration `json:"base_lap_time" yaml:"base_lap_time"`
	Latitude    float64       `json:"latitude" yaml:"latitude"`
	Longitude   float64       `json:"longitude" yaml:"longitude"`
}

type HTTP struct {
	Address           string        `json:"address" yaml:"address" env:"F1_HTTP_ADDRESS"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Database: Database{
			Path:           "./f1_data.db",
			PoolSize:       8,
			AcquireTimeout: 2 * time.Second,
			BusyTimeout:    5 * time.Second,
		},
		Telemetry: Telemetry{
			BaseURL:   "http://localhost:8001",
			Timeout:   10 * time.Second,
			CacheDir:  "./fastf1_cache",
			CacheTTL:  time.Hour,
			CacheSize: 256,
		},
		Weather: Weather{
			ForecastURL: "https://api.open-meteo.com/v1/forecast",
			ArchiveURL:  "https://archive-api.open-meteo.com/v1/archive",
			Timeout:     5 * time.Second,
			CacheTTL:    10 * time.Minute,
			CacheSize:   128,

			DefaultLatitude:  45.620,
			DefaultLongitude: 9.281,
		},
		Simulation: Simulation{
			Enabled:  false,
			Interval: time.Second,
		},
		HTTP: HTTP{
			Address:           ":8000",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
	}
}

// Load reads the config at path over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)

		if err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "config: could not open %s", path)
		} else if err == nil {
			defer f.Close()

			if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
				return Config{}, errors.Wrapf(err, "config: could not decode %s", path)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: could not parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var (
	ErrInvalidPoolSize      = errors.New("config: database pool_size must be at least 1")
	ErrInvalidDatabasePath  = errors.New("config: database path is required")
	ErrInvalidTimeout       = errors.New("config: timeouts must be positive")
	ErrInvalidTickInterval  = errors.New("config: simulation interval must be positive")
	ErrInvalidWeatherURL    = errors.New("config: weather forecast_url is required")
	ErrInvalidTelemetryURL  = errors.New("config: telemetry base_url is required")
	ErrInvalidHTTPAddress   = errors.New("config: http address is required")
	ErrInvalidLogLevel      = errors.New("config: unknown log_level")
	ErrInvalidSimulationKey = errors.New("config: simulation target session_id is required")
)

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return ErrInvalidDatabasePath
	}

	if c.Database.PoolSize < 1 {
		return ErrInvalidPoolSize
	}

	if c.Database.AcquireTimeout <= 0 || c.Telemetry.Timeout <= 0 || c.Weather.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Simulation.Interval <= 0 {
		return ErrInvalidTickInterval
	}

	if strings.TrimSpace(c.Weather.ForecastURL) == "" {
		return ErrInvalidWeatherURL
	}

	if strings.TrimSpace(c.Telemetry.BaseURL) == "" {
		return ErrInvalidTelemetryURL
	}

	if strings.TrimSpace(c.HTTP.Address) == "" {
		return ErrInvalidHTTPAddress
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidLogLevel, "%q", c.LogLevel)
	}

	for _, target := range c.Simulation.Targets {
		if strings.TrimSpace(target.SessionID) == "" {
			return ErrInvalidSimulationKey
		}
	}

	return nil
}

func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)

	if err != nil {
		return logrus.InfoLevel
	}

	return level
}
