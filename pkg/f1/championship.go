package f1

import (
	"fmt"
	"strings"
	"time"
)

type Team struct {
	ID    int64  `json:"id"`
	Year  int    `json:"year"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Driver is a driver's entry for one season. ID is the three letter code
// used by lap records and results.
type Driver struct {
	ID          string `json:"driver_id"`
	Year        int    `json:"year"`
	Number      int    `json:"number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CountryCode string `json:"country_code"`
	TeamID      int64  `json:"team_id"`
	TeamName    string `json:"team_name"`
	TeamColor   string `json:"team_color"`
}

func (d Driver) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// RaceResult is a driver's classification in a session. Position is 0 for a
// driver who was not classified.
type RaceResult struct {
	SessionID    int64         `json:"session_id"`
	DriverID     string        `json:"driver_id"`
	DriverName   string        `json:"driver_name"`
	Number       int           `json:"number"`
	TeamName     string        `json:"team_name"`
	TeamColor    string        `json:"team_color"`
	Position     int           `json:"position"`
	GridPosition int           `json:"grid_position"`
	Points       float64       `json:"points"`
	Status       string        `json:"status"`
	RaceTime     time.Duration `json:"race_time"`
}

func (r RaceResult) Classified() bool {
	return r.Position > 0
}

func (r RaceResult) String() string {
	if !r.Classified() {
		return fmt.Sprintf("NC %s (%s)", r.DriverID, r.Status)
	}

	return fmt.Sprintf("P%d %s (%g pts)", r.Position, r.DriverID, r.Points)
}

// PointsSessions are the session types that score championship points.
var PointsSessions = []SessionType{SessionTypeRace, SessionTypeSprint}

type DriverStanding struct {
	Position   int     `json:"position"`
	DriverID   string  `json:"driver_id"`
	DriverName string  `json:"driver_name"`
	TeamName   string  `json:"team_name"`
	TeamColor  string  `json:"team_color"`
	Points     float64 `json:"points"`
}

type ConstructorStanding struct {
	Position  int     `json:"position"`
	TeamID    int64   `json:"team_id"`
	TeamName  string  `json:"team_name"`
	TeamColor string  `json:"team_color"`
	Points    float64 `json:"points"`
}
