package aggregate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
)

func storageConfig(t *testing.T) config.Database {
	return config.Database{
		Path:           filepath.Join(t.TempDir(), "f1.db"),
		PoolSize:       2,
		AcquireTimeout: time.Second,
		BusyTimeout:    time.Second,
	}
}
