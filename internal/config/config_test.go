package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
)

const testConfigYAML = `
log_level: debug
database:
  path: /tmp/test.db
  pool_size: 3
  acquire_timeout: 250ms
weather:
  api_key: abc123
simulation:
  enabled: true
  interval: 500ms
  targets:
    - session_id: "1001"
      drivers: [VER, HAM, LEC]
      total_laps: 57
      base_lap_time: 1m32s
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")

	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))

	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.Path != "/tmp/test.db" || cfg.Database.PoolSize != 3 {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}

	if cfg.Database.AcquireTimeout != 250*time.Millisecond {
		t.Errorf("expected acquire timeout 250ms, got %s", cfg.Database.AcquireTimeout)
	}

	// untouched sections keep their defaults
	if cfg.Weather.ForecastURL != Default().Weather.ForecastURL {
		t.Errorf("expected default forecast url, got %s", cfg.Weather.ForecastURL)
	}

	if cfg.Weather.APIKey != "abc123" {
		t.Errorf("expected api key from file, got %q", cfg.Weather.APIKey)
	}

	if !cfg.Simulation.Enabled || cfg.Simulation.Interval != 500*time.Millisecond {
		t.Errorf("unexpected simulation config: %+v", cfg.Simulation)
	}

	if len(cfg.Simulation.Targets) != 1 || len(cfg.Simulation.Targets[0].Drivers) != 3 {
		t.Fatalf("unexpected simulation targets: %+v", cfg.Simulation.Targets)
	}

	if cfg.Simulation.Targets[0].BaseLapTime != 92*time.Second {
		t.Errorf("expected base lap time 1m32s, got %s", cfg.Simulation.Targets[0].BaseLapTime)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))

	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.PoolSize != Default().Database.PoolSize {
		t.Errorf("expected default pool size, got %d", cfg.Database.PoolSize)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("F1_DB_POOL_SIZE", "12")
	t.Setenv("WEATHER_API_KEY", "from-env")
	t.Setenv("WEATHER_LATITUDE", "26.0325")

	cfg, err := Load(writeConfig(t, testConfigYAML))

	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.PoolSize != 12 {
		t.Errorf("expected env pool size 12, got %d", cfg.Database.PoolSize)
	}

	if cfg.Weather.APIKey != "from-env" {
		t.Errorf("expected env api key, got %q", cfg.Weather.APIKey)
	}

	if cfg.Weather.DefaultLatitude != 26.0325 || cfg.Weather.DefaultLongitude != Default().Weather.DefaultLongitude {
		t.Errorf("unexpected default position %f, %f", cfg.Weather.DefaultLatitude, cfg.Weather.DefaultLongitude)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		err    error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"zero pool", func(c *Config) { c.Database.PoolSize = 0 }, ErrInvalidPoolSize},
		{"empty path", func(c *Config) { c.Database.Path = " " }, ErrInvalidDatabasePath},
		{"zero acquire timeout", func(c *Config) { c.Database.AcquireTimeout = 0 }, ErrInvalidTimeout},
		{"zero interval", func(c *Config) { c.Simulation.Interval = 0 }, ErrInvalidTickInterval},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
		{"target without session", func(c *Config) { c.Simulation.Targets = []SimulationTarget{{}} }, ErrInvalidSimulationKey},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(&cfg)

			err := cfg.Validate()

			if test.err == nil && err != nil {
				t.Errorf("expected no error, got %s", err)
			} else if test.err != nil && !errors.Is(err, test.err) {
				t.Errorf("expected %s, got %v", test.err, err)
			}
		})
	}
}
