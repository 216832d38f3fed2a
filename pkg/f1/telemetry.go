package f1

import (
	"sort"
	"time"
)

type TelemetrySample struct {
	Time     time.Duration `json:"time"`
	Distance float64       `json:"distance"`
	Speed    float64       `json:"speed"`
	Throttle float64       `json:"throttle"`
	Brake    bool          `json:"brake"`
	Gear     int           `json:"gear"`
	RPM      int           `json:"rpm"`
	DRS      bool          `json:"drs"`
}

type LapTelemetry struct {
	Season      int               `json:"season"`
	Round       int               `json:"round"`
	SessionType SessionType       `json:"session_type"`
	DriverID    string            `json:"driver_id"`
	LapNumber   int               `json:"lap_number"`
	LapTime     time.Duration     `json:"lap_time"`
	Samples     []TelemetrySample `json:"samples"`
}

func SortSamples(samples []TelemetrySample) {
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Time != samples[j].Time {
			return samples[i].Time < samples[j].Time
		}

		return samples[i].Distance < samples[j].Distance
	})
}

func (t LapTelemetry) TopSpeed() float64 {
	var top float64

	for _, sample := range t.Samples {
		if sample.Speed > top {
			top = sample.Speed
		}
	}

	return top
}
