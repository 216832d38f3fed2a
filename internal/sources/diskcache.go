package sources

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/metrics"
	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

const diskCacheFile = "telemetry.db"

var telemetryBucket = []byte("telemetry")

// DiskCache persists fetched lap telemetry in a bbolt file. Historical
// telemetry does not change, so entries never expire.
type DiskCache struct {
	db     *bbolt.DB
	logger logrus.FieldLogger
}

func OpenDiskCache(dir string, logger logrus.FieldLogger) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "sources: could not create cache directory")
	}

	db, err := bbolt.Open(filepath.Join(dir, diskCacheFile), 0600, &bbolt.Options{Timeout: time.Second})

	if err != nil {
		return nil, errors.Wrap(err, "sources: could not open telemetry cache")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(telemetryBucket)

		return err
	})

	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sources: could not create telemetry bucket")
	}

	if info, err := os.Stat(db.Path()); err == nil {
		logger.Debugf("Opened telemetry cache %s (%s)", db.Path(), humanize.Bytes(uint64(info.Size())))
	}

	return &DiskCache{db: db, logger: logger}, nil
}

func (c *DiskCache) Get(key TelemetryKey) (f1.LapTelemetry, bool) {
	var (
		telemetry f1.LapTelemetry
		found     bool
	)

	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(telemetryBucket).Get([]byte(key.String()))

		if data == nil {
			return nil
		}

		if err := json.Unmarshal(data, &telemetry); err != nil {
			return err
		}

		found = true

		return nil
	})

	if err != nil {
		c.logger.WithError(err).Warnf("Could not read cached telemetry for %s", key)
		return f1.LapTelemetry{}, false
	}

	if found {
		metrics.SourceCacheHits.WithLabelValues(TelemetrySourceName, "disk").Inc()
	}

	return telemetry, found
}

func (c *DiskCache) Put(key TelemetryKey, telemetry f1.LapTelemetry) error {
	data, err := json.Marshal(telemetry)

	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(telemetryBucket).Put([]byte(key.String()), data)
	})
}

func (c *DiskCache) Len() int {
	var n int

	_ = c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(telemetryBucket).Stats().KeyN

		return nil
	})

	return n
}

func (c *DiskCache) Close() error {
	return c.db.Close()
}
