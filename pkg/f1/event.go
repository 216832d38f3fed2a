package f1

import "fmt"

// Event is a race weekend.
type Event struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Year       int     `json:"year"`
	Round      int     `json:"round"`
	Location   string  `json:"location"`
	Country    string  `json:"country"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	SessionIDs []int64 `json:"session_ids"`
}

func (e Event) String() string {
	return fmt.Sprintf("%d Round %d: %s", e.Year, e.Round, e.Name)
}

func (e Event) HasCoordinates() bool {
	return e.Latitude != 0 || e.Longitude != 0
}
