package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

const TelemetrySourceName = "telemetry"

// TelemetryKey identifies the telemetry of one lap of one driver.
type TelemetryKey struct {
	Season      int
	Round       int
	SessionType f1.SessionType
	Driver      string
	Lap         int
}

func (k TelemetryKey) String() string {
	return fmt.Sprintf("%d/%d/%s/%s/%d", k.Season, k.Round, k.SessionType, k.Driver, k.Lap)
}

func (k TelemetryKey) Validate() error {
	switch {
	case k.Season < 1950:
		return errors.Wrapf(ErrInvalidKey, "season %d", k.Season)
	case k.Round < 1:
		return errors.Wrapf(ErrInvalidKey, "round %d", k.Round)
	case !k.SessionType.Valid():
		return errors.Wrapf(ErrInvalidKey, "session type %q", k.SessionType)
	case strings.TrimSpace(k.Driver) == "":
		return errors.Wrap(ErrInvalidKey, "driver is required")
	case k.Lap < 1:
		return errors.Wrapf(ErrInvalidKey, "lap %d", k.Lap)
	}

	return nil
}

type telemetryResponse struct {
	LapTime float64                   `json:"lap_time"`
	Samples []telemetrySampleResponse `json:"samples"`
}

type telemetrySampleResponse struct {
	Time     float64 `json:"time"`
	Distance float64 `json:"distance"`
	Speed    float64 `json:"speed"`
	Throttle float64 `json:"throttle"`
	Brake    bool    `json:"brake"`
	Gear     int     `json:"gear"`
	RPM      int     `json:"rpm"`
	DRS      bool    `json:"drs"`
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// TelemetryAdapter fetches per-lap car telemetry from the telemetry provider.
// Responses are persisted in the provider's on-disk cache when one is set.
type TelemetryAdapter struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	disk    *DiskCache
	logger  logrus.FieldLogger
}

func NewTelemetryAdapter(cfg config.Telemetry, disk *DiskCache, logger logrus.FieldLogger) *TelemetryAdapter {
	return &TelemetryAdapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		client:  &http.Client{},
		disk:    disk,
		logger:  logger,
	}
}

func (a *TelemetryAdapter) Name() string {
	return TelemetrySourceName
}

func (a *TelemetryAdapter) Fetch(ctx context.Context, key TelemetryKey) (telemetry f1.LapTelemetry, err error) {
	started := time.Now()

	defer func() {
		observe(TelemetrySourceName, started, err)
	}()

	if err := key.Validate(); err != nil {
		return f1.LapTelemetry{}, notFound(TelemetrySourceName, err)
	}

	if a.disk != nil {
		if telemetry, ok := a.disk.Get(key); ok {
			return telemetry, nil
		}
	}

	ctx, cfn := context.WithTimeout(ctx, a.timeout)
	defer cfn()

	query := url.Values{}
	query.Set("year", strconv.Itoa(key.Season))
	query.Set("round", strconv.Itoa(key.Round))
	query.Set("session", string(key.SessionType))
	query.Set("driver", key.Driver)
	query.Set("lap", strconv.Itoa(key.Lap))

	var resp telemetryResponse

	if err := getJSON(ctx, a.client, TelemetrySourceName, a.baseURL+"/telemetry", query, &resp); err != nil {
		a.logger.WithError(err).Debugf("Could not fetch telemetry for %s", key)

		return f1.LapTelemetry{}, err
	}

	if len(resp.Samples) == 0 {
		return f1.LapTelemetry{}, notFound(TelemetrySourceName, errors.Errorf("no samples for %s", key))
	}

	telemetry = f1.LapTelemetry{
		Season:      key.Season,
		Round:       key.Round,
		SessionType: key.SessionType,
		DriverID:    key.Driver,
		LapNumber:   key.Lap,
		LapTime:     seconds(resp.LapTime),
		Samples:     make([]f1.TelemetrySample, 0, len(resp.Samples)),
	}

	for _, sample := range resp.Samples {
		telemetry.Samples = append(telemetry.Samples, f1.TelemetrySample{
			Time:     seconds(sample.Time),
			Distance: sample.Distance,
			Speed:    sample.Speed,
			Throttle: sample.Throttle,
			Brake:    sample.Brake,
			Gear:     sample.Gear,
			RPM:      sample.RPM,
			DRS:      sample.DRS,
		})
	}

	f1.SortSamples(telemetry.Samples)

	if a.disk != nil {
		if err := a.disk.Put(key, telemetry); err != nil {
			a.logger.WithError(err).Warnf("Could not persist telemetry for %s", key)
		}
	}

	return telemetry, nil
}
