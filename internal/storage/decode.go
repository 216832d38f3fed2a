package storage

import (
	"math"
	"strconv"
	"time"

	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

func requireInt(row Row, table, column string) (int64, error) {
	value, ok := row[column]

	if !ok || value == nil {
		return 0, &RowError{Table: table, Column: column, Reason: "is missing"}
	}

	switch v := value.(type) {
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, &RowError{Table: table, Column: column, Reason: "is not an integer"}
		}

		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}

		return 0, nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)

		if err != nil {
			return 0, &RowError{Table: table, Column: column, Reason: "is not an integer"}
		}

		return i, nil
	default:
		return 0, &RowError{Table: table, Column: column, Reason: "has an unexpected type"}
	}
}

func optionalInt(row Row, table, column string) (int64, error) {
	if value, ok := row[column]; !ok || value == nil {
		return 0, nil
	}

	return requireInt(row, table, column)
}

func optionalFloat(row Row, table, column string) (float64, error) {
	value, ok := row[column]

	if !ok || value == nil {
		return 0, nil
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)

		if err != nil {
			return 0, &RowError{Table: table, Column: column, Reason: "is not a number"}
		}

		return f, nil
	default:
		return 0, &RowError{Table: table, Column: column, Reason: "has an unexpected type"}
	}
}

func requireString(row Row, table, column string) (string, error) {
	value, ok := row[column]

	if !ok || value == nil {
		return "", &RowError{Table: table, Column: column, Reason: "is missing"}
	}

	s, ok := value.(string)

	if !ok || s == "" {
		return "", &RowError{Table: table, Column: column, Reason: "is not a non-empty string"}
	}

	return s, nil
}

func optionalString(row Row, column string) string {
	s, _ := row[column].(string)

	return s
}

func requireTime(row Row, table, column string) (time.Time, error) {
	value, ok := row[column]

	if !ok || value == nil {
		return time.Time{}, &RowError{Table: table, Column: column, Reason: "is missing"}
	}

	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)

		if err != nil {
			return time.Time{}, &RowError{Table: table, Column: column, Reason: "is not an RFC3339 timestamp"}
		}

		return t.UTC(), nil
	default:
		return time.Time{}, &RowError{Table: table, Column: column, Reason: "has an unexpected type"}
	}
}

func decodeEvent(row Row) (f1.Event, error) {
	var (
		event f1.Event
		err   error
		i     int64
	)

	if event.ID, err = requireInt(row, tableEvents, "id"); err != nil {
		return f1.Event{}, err
	}

	if event.Name, err = requireString(row, tableEvents, "name"); err != nil {
		return f1.Event{}, err
	}

	if i, err = requireInt(row, tableEvents, "year"); err != nil {
		return f1.Event{}, err
	}

	event.Year = int(i)

	if i, err = requireInt(row, tableEvents, "round"); err != nil {
		return f1.Event{}, err
	}

	event.Round = int(i)
	event.Location = optionalString(row, "location")
	event.Country = optionalString(row, "country")

	if event.Latitude, err = optionalFloat(row, tableEvents, "latitude"); err != nil {
		return f1.Event{}, err
	}

	if event.Longitude, err = optionalFloat(row, tableEvents, "longitude"); err != nil {
		return f1.Event{}, err
	}

	return event, nil
}

func decodeSession(row Row) (f1.Session, error) {
	var (
		session f1.Session
		err     error
		s       string
		i       int64
	)

	if session.ID, err = requireInt(row, tableSessions, "id"); err != nil {
		return f1.Session{}, err
	}

	if session.EventID, err = requireInt(row, tableSessions, "event_id"); err != nil {
		return f1.Session{}, err
	}

	if s, err = requireString(row, tableSessions, "type"); err != nil {
		return f1.Session{}, err
	}

	session.Type = f1.SessionType(s)

	if !session.Type.Valid() {
		return f1.Session{}, &RowError{Table: tableSessions, Column: "type", Reason: "is not a known session type"}
	}

	if session.StartTime, err = requireTime(row, tableSessions, "start_time"); err != nil {
		return f1.Session{}, err
	}

	if s, err = requireString(row, tableSessions, "status"); err != nil {
		return f1.Session{}, err
	}

	session.Status = f1.SessionStatus(s)

	if !session.Status.Valid() {
		return f1.Session{}, &RowError{Table: tableSessions, Column: "status", Reason: "is not a known session status"}
	}

	session.Name = optionalString(row, "name")

	if session.Name == "" {
		session.Name = session.Type.String()
	}

	if i, err = optionalInt(row, tableSessions, "total_laps"); err != nil {
		return f1.Session{}, err
	}

	session.TotalLaps = int(i)

	return session, nil
}

func decodeLap(row Row) (f1.LapRecord, error) {
	var (
		lap f1.LapRecord
		err error
		i   int64
	)

	if lap.SessionID, err = requireInt(row, tableLaps, "session_id"); err != nil {
		return f1.LapRecord{}, err
	}

	if lap.DriverID, err = requireString(row, tableLaps, "driver_id"); err != nil {
		return f1.LapRecord{}, err
	}

	if i, err = requireInt(row, tableLaps, "lap_number"); err != nil {
		return f1.LapRecord{}, err
	}

	lap.LapNumber = int(i)

	if i, err = requireInt(row, tableLaps, "lap_time"); err != nil {
		return f1.LapRecord{}, err
	}

	lap.LapTime = time.Duration(i) * time.Millisecond

	for index, column := range []string{"sector1", "sector2", "sector3"} {
		if i, err = optionalInt(row, tableLaps, column); err != nil {
			return f1.LapRecord{}, err
		}

		lap.Sectors[index] = time.Duration(i) * time.Millisecond
	}

	lap.Compound = f1.Compound(optionalString(row, "compound"))

	if lap.Compound == "" {
		lap.Compound = f1.CompoundUnknown
	}

	if i, err = optionalInt(row, tableLaps, "pit"); err != nil {
		return f1.LapRecord{}, err
	}

	lap.Pit = i != 0

	return lap, nil
}

func decodeTeam(row Row) (f1.Team, error) {
	var (
		team f1.Team
		err  error
		i    int64
	)

	if team.ID, err = requireInt(row, tableTeams, "id"); err != nil {
		return f1.Team{}, err
	}

	if i, err = requireInt(row, tableTeams, "year"); err != nil {
		return f1.Team{}, err
	}

	team.Year = int(i)

	if team.Name, err = requireString(row, tableTeams, "name"); err != nil {
		return f1.Team{}, err
	}

	team.Color = optionalString(row, "color")

	return team, nil
}

func decodeDriver(row Row) (f1.Driver, error) {
	var (
		driver f1.Driver
		err    error
		i      int64
	)

	if driver.ID, err = requireString(row, tableDrivers, "driver_id"); err != nil {
		return f1.Driver{}, err
	}

	if i, err = requireInt(row, tableDrivers, "year"); err != nil {
		return f1.Driver{}, err
	}

	driver.Year = int(i)

	if i, err = optionalInt(row, tableDrivers, "number"); err != nil {
		return f1.Driver{}, err
	}

	driver.Number = int(i)

	if driver.TeamID, err = requireInt(row, tableDrivers, "team_id"); err != nil {
		return f1.Driver{}, err
	}

	driver.FirstName = optionalString(row, "first_name")
	driver.LastName = optionalString(row, "last_name")
	driver.CountryCode = optionalString(row, "country_code")
	driver.TeamName = optionalString(row, "team_name")
	driver.TeamColor = optionalString(row, "team_color")

	return driver, nil
}

// decodeResult reads a results row joined with its driver and team, either of
// which may be missing.
func decodeResult(row Row) (f1.RaceResult, error) {
	var (
		result f1.RaceResult
		err    error
		i      int64
	)

	if result.SessionID, err = requireInt(row, tableResults, "session_id"); err != nil {
		return f1.RaceResult{}, err
	}

	if result.DriverID, err = requireString(row, tableResults, "driver_id"); err != nil {
		return f1.RaceResult{}, err
	}

	if i, err = optionalInt(row, tableResults, "position"); err != nil {
		return f1.RaceResult{}, err
	}

	result.Position = int(i)

	if i, err = optionalInt(row, tableResults, "grid_position"); err != nil {
		return f1.RaceResult{}, err
	}

	result.GridPosition = int(i)

	if result.Points, err = optionalFloat(row, tableResults, "points"); err != nil {
		return f1.RaceResult{}, err
	}

	if i, err = optionalInt(row, tableResults, "race_time"); err != nil {
		return f1.RaceResult{}, err
	}

	result.RaceTime = time.Duration(i) * time.Millisecond

	if i, err = optionalInt(row, tableResults, "number"); err != nil {
		return f1.RaceResult{}, err
	}

	result.Number = int(i)
	result.Status = optionalString(row, "status")
	result.DriverName = (f1.Driver{FirstName: optionalString(row, "first_name"), LastName: optionalString(row, "last_name")}).FullName()
	result.TeamName = optionalString(row, "team_name")
	result.TeamColor = optionalString(row, "team_color")

	return result, nil
}

func decodeDriverStanding(row Row) (f1.DriverStanding, error) {
	var (
		standing f1.DriverStanding
		err      error
	)

	if standing.DriverID, err = requireString(row, tableResults, "driver_id"); err != nil {
		return f1.DriverStanding{}, err
	}

	if standing.Points, err = optionalFloat(row, tableResults, "points"); err != nil {
		return f1.DriverStanding{}, err
	}

	standing.DriverName = (f1.Driver{FirstName: optionalString(row, "first_name"), LastName: optionalString(row, "last_name")}).FullName()
	standing.TeamName = optionalString(row, "team_name")
	standing.TeamColor = optionalString(row, "team_color")

	return standing, nil
}

func decodeConstructorStanding(row Row) (f1.ConstructorStanding, error) {
	var (
		standing f1.ConstructorStanding
		err      error
	)

	if standing.TeamID, err = requireInt(row, tableTeams, "team_id"); err != nil {
		return f1.ConstructorStanding{}, err
	}

	if standing.TeamName, err = requireString(row, tableTeams, "team_name"); err != nil {
		return f1.ConstructorStanding{}, err
	}

	if standing.Points, err = optionalFloat(row, tableResults, "points"); err != nil {
		return f1.ConstructorStanding{}, err
	}

	standing.TeamColor = optionalString(row, "team_color")

	return standing, nil
}
