package live

import (
	"time"

	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

// Metric names, the second segment of a key.
const (
	MetricSession     = "session"
	MetricTiming      = "timing"
	MetricWeather     = "weather"
	MetricTrackStatus = "track_status"
	MetricCar         = "car"
)

type SessionState struct {
	SessionID  string        `json:"session_id"`
	RunID      string        `json:"run_id"`
	CurrentLap int           `json:"current_lap"`
	TotalLaps  int           `json:"total_laps"`
	Elapsed    time.Duration `json:"elapsed"`
	Finished   bool          `json:"finished"`
}

type TimingLine struct {
	Position int           `json:"position"`
	DriverID string        `json:"driver_id"`
	Lap      int           `json:"lap"`
	LastLap  time.Duration `json:"last_lap"`
	BestLap  time.Duration `json:"best_lap"`
	Gap      time.Duration `json:"gap"`
	Interval time.Duration `json:"interval"`
	Compound f1.Compound   `json:"compound"`
	TyreAge  int           `json:"tyre_age"`
	PitStops int           `json:"pit_stops"`
	InPit    bool          `json:"in_pit"`
}

// Timing is the classification, leader first.
type Timing struct {
	Lines []TimingLine `json:"lines"`
}

type CarState struct {
	DriverID string  `json:"driver_id"`
	Lap      int     `json:"lap"`
	Speed    float64 `json:"speed"`
	Throttle float64 `json:"throttle"`
	Brake    bool    `json:"brake"`
	Gear     int     `json:"gear"`
	RPM      int     `json:"rpm"`
	DRS      bool    `json:"drs"`
}

type TrackStatus string

const (
	TrackGreen            TrackStatus = "green"
	TrackYellow           TrackStatus = "yellow"
	TrackVirtualSafetyCar TrackStatus = "vsc"
	TrackSafetyCar        TrackStatus = "safety_car"
)

type TrackState struct {
	Status TrackStatus `json:"status"`
	Since  int         `json:"since_lap"`
}
