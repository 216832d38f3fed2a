package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

const telemetryPayload = `{
	"lap_time": 92.345,
	"samples": [
		{"time": 0.5, "distance": 30.1, "speed": 281.4, "throttle": 100, "gear": 8, "rpm": 11800, "drs": true},
		{"time": 0.0, "distance": 0, "speed": 279.9, "throttle": 100, "gear": 8, "rpm": 11750, "drs": true},
		{"time": 1.0, "distance": 61.0, "speed": 250.2, "throttle": 0, "brake": true, "gear": 7, "rpm": 10900}
	]
}`

var testTelemetryKey = TelemetryKey{Season: 2024, Round: 1, SessionType: f1.SessionTypeRace, Driver: "VER", Lap: 12}

func newTestTelemetryAdapter(t *testing.T, handler http.HandlerFunc, timeout time.Duration, withDisk bool) *TelemetryAdapter {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var disk *DiskCache

	if withDisk {
		var err error

		disk, err = OpenDiskCache(t.TempDir(), logrus.New())

		if err != nil {
			t.Fatal(err)
		}

		t.Cleanup(func() {
			_ = disk.Close()
		})
	}

	return NewTelemetryAdapter(config.Telemetry{BaseURL: server.URL + "/", Timeout: timeout}, disk, logrus.New())
}

func TestTelemetryAdapterFetch(t *testing.T) {
	var requests int32

	adapter := newTestTelemetryAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)

		query := r.URL.Query()

		if r.URL.Path != "/telemetry" || query.Get("year") != "2024" || query.Get("round") != "1" ||
			query.Get("session") != "race" || query.Get("driver") != "VER" || query.Get("lap") != "12" {
			t.Errorf("unexpected request %s", r.URL)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(telemetryPayload))
	}, time.Second, true)

	telemetry, err := adapter.Fetch(context.Background(), testTelemetryKey)

	if err != nil {
		t.Fatal(err)
	}

	if telemetry.LapTime != 92345*time.Millisecond {
		t.Errorf("unexpected lap time %s", telemetry.LapTime)
	}

	if len(telemetry.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(telemetry.Samples))
	}

	for i := 1; i < len(telemetry.Samples); i++ {
		if telemetry.Samples[i].Time < telemetry.Samples[i-1].Time {
			t.Errorf("samples are not ordered by time: %v", telemetry.Samples)
		}
	}

	if telemetry.TopSpeed() != 281.4 || !telemetry.Samples[2].Brake {
		t.Errorf("unexpected samples: %+v", telemetry.Samples)
	}

	// the second fetch is served from the on-disk cache
	again, err := adapter.Fetch(context.Background(), testTelemetryKey)

	if err != nil {
		t.Fatal(err)
	}

	if atomic.LoadInt32(&requests) != 1 {
		t.Errorf("expected one request to the provider, got %d", requests)
	}

	if again.LapTime != telemetry.LapTime || len(again.Samples) != len(telemetry.Samples) {
		t.Errorf("cached telemetry differs: %+v", again)
	}
}

func TestTelemetryAdapterFailures(t *testing.T) {
	failures := []struct {
		name     string
		handler  http.HandlerFunc
		expected error
	}{
		{
			name: "Not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no such lap", http.StatusNotFound)
			},
			expected: ErrNotFound,
		},
		{
			name: "Unprocessable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			},
			expected: ErrNotFound,
		},
		{
			name: "No samples",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"lap_time": 90.1, "samples": []}`))
			},
			expected: ErrNotFound,
		},
		{
			name: "Server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			expected: ErrUnavailable,
		},
		{
			name: "Rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			expected: ErrUnavailable,
		},
		{
			name: "Malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"lap_time": "fast"`))
			},
			expected: ErrUnavailable,
		},
		{
			name: "Timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			expected: ErrUnavailable,
		},
	}

	for _, test := range failures {
		t.Run(test.name, func(t *testing.T) {
			adapter := newTestTelemetryAdapter(t, test.handler, 50*time.Millisecond, false)

			_, err := adapter.Fetch(context.Background(), testTelemetryKey)

			if !errors.Is(err, test.expected) {
				t.Errorf("expected %v, got %v", test.expected, err)
			}
		})
	}

	t.Run("Invalid key", func(t *testing.T) {
		adapter := newTestTelemetryAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("an invalid key should not reach the provider")
		}, time.Second, false)

		_, err := adapter.Fetch(context.Background(), TelemetryKey{Season: 2024, Round: 1, SessionType: f1.SessionTypeRace})

		if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected a not found invalid key error, got %v", err)
		}
	})

	t.Run("Unreachable provider", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		adapter := NewTelemetryAdapter(config.Telemetry{BaseURL: server.URL, Timeout: time.Second}, nil, logrus.New())

		if _, err := adapter.Fetch(context.Background(), testTelemetryKey); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})
}
