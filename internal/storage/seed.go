package storage

import (
	"context"
	"io/ioutil"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

// Fixture is the YAML document accepted by the seed command.
type Fixture struct {
	Teams  []TeamFixture  `yaml:"teams"`
	Events []EventFixture `yaml:"events"`
}

// TeamFixture is a team's entry for one season together with its drivers.
type TeamFixture struct {
	ID      int64           `yaml:"id"`
	Year    int             `yaml:"year"`
	Name    string          `yaml:"name"`
	Color   string          `yaml:"color"`
	Drivers []DriverFixture `yaml:"drivers"`
}

type DriverFixture struct {
	ID          string `yaml:"id"`
	Number      int    `yaml:"number"`
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	CountryCode string `yaml:"country_code"`
}

type EventFixture struct {
	ID        int64            `yaml:"id"`
	Name      string           `yaml:"name"`
	Year      int              `yaml:"year"`
	Round     int              `yaml:"round"`
	Location  string           `yaml:"location"`
	Country   string           `yaml:"country"`
	Latitude  float64          `yaml:"latitude"`
	Longitude float64          `yaml:"longitude"`
	Sessions  []SessionFixture `yaml:"sessions"`
}

type SessionFixture struct {
	ID        int64        `yaml:"id"`
	Type      string       `yaml:"type"`
	Name      string       `yaml:"name"`
	StartTime string       `yaml:"start_time"`
	Status    string       `yaml:"status"`
	TotalLaps int          `yaml:"total_laps"`
	Laps      []LapFixture `yaml:"laps"`

	Results []ResultFixture `yaml:"results"`
}

// ResultFixture is one line of a classification. A zero position marks a
// driver who was not classified.
type ResultFixture struct {
	Driver   string  `yaml:"driver"`
	Position int     `yaml:"position"`
	Grid     int     `yaml:"grid"`
	Points   float64 `yaml:"points"`
	Status   string  `yaml:"status"`
	Time     string  `yaml:"time"`
}

type LapFixture struct {
	Driver   string   `yaml:"driver"`
	Lap      int      `yaml:"lap"`
	Time     string   `yaml:"time"`
	Sectors  []string `yaml:"sectors"`
	Compound string   `yaml:"compound"`
	Pit      bool     `yaml:"pit"`
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := ioutil.ReadFile(path)

	if err != nil {
		return nil, err
	}

	var fixture Fixture

	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, errors.Wrapf(err, "storage: could not parse fixture %s", path)
	}

	return &fixture, nil
}

func (l LapFixture) lap(sessionID int64) (f1.LapRecord, error) {
	lapTime, err := f1.ParseLapTime(l.Time)

	if err != nil {
		return f1.LapRecord{}, err
	}

	if len(l.Sectors) > 3 {
		return f1.LapRecord{}, errors.Errorf("storage: %s lap %d has %d sectors", l.Driver, l.Lap, len(l.Sectors))
	}

	lap := f1.LapRecord{
		SessionID: sessionID,
		DriverID:  l.Driver,
		LapNumber: l.Lap,
		LapTime:   lapTime,
		Compound:  f1.Compound(l.Compound),
		Pit:       l.Pit,
	}

	for i, sector := range l.Sectors {
		if lap.Sectors[i], err = f1.ParseLapTime(sector); err != nil {
			return f1.LapRecord{}, err
		}
	}

	if lap.Compound == "" {
		lap.Compound = f1.CompoundUnknown
	}

	return lap, nil
}

// LapRecords converts the fixture laps of a session.
func (s SessionFixture) LapRecords() ([]f1.LapRecord, error) {
	laps := make([]f1.LapRecord, 0, len(s.Laps))

	for _, fixture := range s.Laps {
		lap, err := fixture.lap(s.ID)

		if err != nil {
			return nil, err
		}

		laps = append(laps, lap)
	}

	return laps, nil
}

// RaceResults converts the fixture classification of a session.
func (s SessionFixture) RaceResults() ([]f1.RaceResult, error) {
	results := make([]f1.RaceResult, 0, len(s.Results))

	for _, fixture := range s.Results {
		result := f1.RaceResult{
			SessionID:    s.ID,
			DriverID:     fixture.Driver,
			Position:     fixture.Position,
			GridPosition: fixture.Grid,
			Points:       fixture.Points,
			Status:       fixture.Status,
		}

		if fixture.Time != "" {
			raceTime, err := f1.ParseLapTime(fixture.Time)

			if err != nil {
				return nil, errors.Wrapf(err, "storage: session %d result of %s", s.ID, fixture.Driver)
			}

			result.RaceTime = raceTime
		}

		if result.Status == "" {
			result.Status = "Finished"
		}

		results = append(results, result)
	}

	return results, nil
}

func (t TeamFixture) entries() (f1.Team, []f1.Driver) {
	team := f1.Team{ID: t.ID, Year: t.Year, Name: t.Name, Color: t.Color}
	drivers := make([]f1.Driver, 0, len(t.Drivers))

	for _, fixture := range t.Drivers {
		drivers = append(drivers, f1.Driver{
			ID:          fixture.ID,
			Year:        t.Year,
			Number:      fixture.Number,
			FirstName:   fixture.FirstName,
			LastName:    fixture.LastName,
			CountryCode: fixture.CountryCode,
			TeamID:      t.ID,
			TeamName:    t.Name,
			TeamColor:   t.Color,
		})
	}

	return team, drivers
}

func (s SessionFixture) session(eventID int64) (f1.Session, error) {
	startTime, err := time.Parse(time.RFC3339, s.StartTime)

	if err != nil {
		return f1.Session{}, errors.Wrapf(err, "storage: session %d has an invalid start_time", s.ID)
	}

	session := f1.Session{
		ID:        s.ID,
		EventID:   eventID,
		Type:      f1.SessionType(s.Type),
		Name:      s.Name,
		StartTime: startTime,
		Status:    f1.SessionStatus(s.Status),
		TotalLaps: s.TotalLaps,
	}

	if session.Status == "" {
		session.Status = f1.SessionStatusScheduled
	}

	if session.Name == "" {
		session.Name = session.Type.String()
	}

	if !session.Type.Valid() || !session.Status.Valid() {
		return f1.Session{}, errors.Errorf("storage: session %d has an unknown type or status (%s, %s)", s.ID, s.Type, s.Status)
	}

	return session, nil
}

// FindSession returns the fixture of a session by id.
func (f *Fixture) FindSession(id int64) (SessionFixture, bool) {
	for _, event := range f.Events {
		for _, session := range event.Sessions {
			if session.ID == id {
				return session, true
			}
		}
	}

	return SessionFixture{}, false
}

// Seed inserts every team, driver, event, session, lap and result of the
// fixture in one transaction. Nothing is written if any record is rejected.
func (r *Repository) Seed(ctx context.Context, fixture *Fixture) error {
	var laps, results int

	err := r.inTransaction(ctx, func(conn *Conn) error {
		for _, teamFixture := range fixture.Teams {
			team, drivers := teamFixture.entries()

			if err := r.insertTeam(ctx, conn, team); err != nil {
				return err
			}

			for _, driver := range drivers {
				if err := r.insertDriver(ctx, conn, driver); err != nil {
					return err
				}
			}
		}

		for _, eventFixture := range fixture.Events {
			event := f1.Event{
				ID:        eventFixture.ID,
				Name:      eventFixture.Name,
				Year:      eventFixture.Year,
				Round:     eventFixture.Round,
				Location:  eventFixture.Location,
				Country:   eventFixture.Country,
				Latitude:  eventFixture.Latitude,
				Longitude: eventFixture.Longitude,
			}

			if err := r.insertEvent(ctx, conn, event); err != nil {
				return err
			}

			for _, sessionFixture := range eventFixture.Sessions {
				session, err := sessionFixture.session(event.ID)

				if err != nil {
					return err
				}

				if err := r.insertSession(ctx, conn, session); err != nil {
					return err
				}

				sessionLaps, err := sessionFixture.LapRecords()

				if err != nil {
					return err
				}

				if err := r.insertLaps(ctx, conn, session.ID, sessionLaps); err != nil {
					return err
				}

				laps += len(sessionLaps)

				sessionResults, err := sessionFixture.RaceResults()

				if err != nil {
					return err
				}

				if err := r.insertResults(ctx, conn, session.ID, sessionResults); err != nil {
					return err
				}

				results += len(sessionResults)
			}
		}

		return nil
	})

	if err != nil {
		return err
	}

	r.logger.Infof("Seeded %d teams, %d events, %s laps and %d results", len(fixture.Teams), len(fixture.Events), humanize.Comma(int64(laps)), results)

	return nil
}
