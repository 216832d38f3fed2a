package f1

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Compound string

const (
	CompoundSoft         Compound = "SOFT"
	CompoundMedium       Compound = "MEDIUM"
	CompoundHard         Compound = "HARD"
	CompoundIntermediate Compound = "INTERMEDIATE"
	CompoundWet          Compound = "WET"
	CompoundUnknown      Compound = "UNKNOWN"
)

var DryCompounds = []Compound{CompoundSoft, CompoundMedium, CompoundHard}

type LapRecord struct {
	SessionID int64            `json:"session_id"`
	DriverID  string           `json:"driver_id"`
	LapNumber int              `json:"lap_number"`
	LapTime   time.Duration    `json:"lap_time"`
	Sectors   [3]time.Duration `json:"sectors"`
	Compound  Compound         `json:"compound"`
	Pit       bool             `json:"pit"`
}

func (l LapRecord) String() string {
	return fmt.Sprintf("%s lap %d: %s (%s)", l.DriverID, l.LapNumber, FormatLapTime(l.LapTime), l.Compound)
}

// SortLaps orders laps by driver, then lap number.
func SortLaps(laps []LapRecord) {
	sort.SliceStable(laps, func(i, j int) bool {
		if laps[i].DriverID != laps[j].DriverID {
			return laps[i].DriverID < laps[j].DriverID
		}

		return laps[i].LapNumber < laps[j].LapNumber
	})
}

// FormatLapTime renders a lap time as m:ss.mmm.
func FormatLapTime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}

	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second

	return fmt.Sprintf("%d:%02d.%03d", minutes, seconds, d/time.Millisecond)
}

// ParseLapTime parses m:ss.mmm, ss.mmm or a Go duration string.
func ParseLapTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var minutes int64

	if i := strings.IndexByte(s, ':'); i >= 0 {
		m, err := strconv.ParseInt(s[:i], 10, 64)

		if err != nil || m < 0 {
			return 0, fmt.Errorf("f1: invalid lap time %q", s)
		}

		minutes = m
		s = s[i+1:]
	}

	seconds, err := strconv.ParseFloat(s, 64)

	if err != nil || seconds < 0 || (minutes > 0 && seconds >= 60) {
		return 0, fmt.Errorf("f1: invalid lap time %q", s)
	}

	return time.Duration(minutes)*time.Minute + time.Duration(math.Round(seconds*1000))*time.Millisecond, nil
}
