package storage

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	logger := logrus.New()
	pool := newTestPool(t, 2)
	repository := NewRepository(pool, NewExecutor(logger), logger)

	if err := repository.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	return repository
}

func newSeededRepository(t *testing.T) *Repository {
	t.Helper()

	repository := newTestRepository(t)
	fixture, err := LoadFixture("testdata/fixture.yml")

	if err != nil {
		t.Fatal(err)
	}

	if err := repository.Seed(context.Background(), fixture); err != nil {
		t.Fatal(err)
	}

	return repository
}

func TestRepositoryReads(t *testing.T) {
	ctx := context.Background()
	repository := newSeededRepository(t)

	t.Run("Available years", func(t *testing.T) {
		years, err := repository.AvailableYears(ctx)

		if err != nil {
			t.Fatal(err)
		}

		if !reflect.DeepEqual(years, []int{2024, 2023}) {
			t.Errorf("unexpected years: %v", years)
		}
	})

	t.Run("Events by year", func(t *testing.T) {
		events, err := repository.EventsByYear(ctx, 2024)

		if err != nil {
			t.Fatal(err)
		}

		if len(events) != 2 || events[0].Round != 1 || events[1].Round != 2 {
			t.Fatalf("unexpected events: %v", events)
		}

		if !reflect.DeepEqual(events[0].SessionIDs, []int64{11, 12}) {
			t.Errorf("sessions should be in schedule order, got %v", events[0].SessionIDs)
		}

		if events[0].Latitude != 26.0325 {
			t.Errorf("unexpected latitude %f", events[0].Latitude)
		}
	})

	t.Run("Event", func(t *testing.T) {
		event, err := repository.Event(ctx, 2)

		if err != nil {
			t.Fatal(err)
		}

		if event.Name != "Saudi Arabian Grand Prix" || !reflect.DeepEqual(event.SessionIDs, []int64{21}) {
			t.Errorf("unexpected event: %+v", event)
		}

		if _, err := repository.Event(ctx, 99); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Session", func(t *testing.T) {
		session, err := repository.Session(ctx, 11)

		if err != nil {
			t.Fatal(err)
		}

		if session.Type != f1.SessionTypeQualifying || session.Name != "Qualifying" || session.Status != f1.SessionStatusCompleted {
			t.Errorf("unexpected session: %+v", session)
		}

		if !session.StartTime.Equal(time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected start time %s", session.StartTime)
		}

		if _, err := repository.Session(ctx, 404); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Laps are ordered by driver then lap", func(t *testing.T) {
		laps, err := repository.Laps(ctx, 12, "")

		if err != nil {
			t.Fatal(err)
		}

		var order []string

		for _, lap := range laps {
			order = append(order, lap.String())
		}

		expected := []string{
			"LEC lap 1: 1:40.375 (SOFT)",
			"LEC lap 2: 1:38.112 (SOFT)",
			"VER lap 1: 1:39.708 (SOFT)",
			"VER lap 2: 1:37.284 (SOFT)",
		}

		if !reflect.DeepEqual(order, expected) {
			t.Errorf("unexpected laps: %v", order)
		}

		if !laps[1].Pit || laps[0].Pit {
			t.Errorf("pit flags were not preserved")
		}
	})

	t.Run("Laps filtered by driver", func(t *testing.T) {
		laps, err := repository.Laps(ctx, 11, "VER")

		if err != nil {
			t.Fatal(err)
		}

		if len(laps) != 1 || laps[0].DriverID != "VER" {
			t.Fatalf("unexpected laps: %v", laps)
		}

		if laps[0].Sectors != [3]time.Duration{28291 * time.Millisecond, 38503 * time.Millisecond, 22385 * time.Millisecond} {
			t.Errorf("unexpected sectors: %v", laps[0].Sectors)
		}
	})
}

func TestRepositoryAppendLaps(t *testing.T) {
	ctx := context.Background()
	repository := newSeededRepository(t)

	t.Run("Recorded laps of a completed session are immutable", func(t *testing.T) {
		err := repository.AppendLaps(ctx, 12, []f1.LapRecord{
			{DriverID: "VER", LapNumber: 3, LapTime: 96 * time.Second},
			{DriverID: "VER", LapNumber: 2, LapTime: 90 * time.Second},
		})

		if !errors.Is(err, ErrLapsImmutable) {
			t.Fatalf("expected ErrLapsImmutable, got %v", err)
		}

		laps, err := repository.Laps(ctx, 12, "VER")

		if err != nil {
			t.Fatal(err)
		}

		if len(laps) != 2 || laps[1].LapTime != 97284*time.Millisecond {
			t.Errorf("rejected append modified the session: %v", laps)
		}
	})

	t.Run("New laps are appended", func(t *testing.T) {
		err := repository.AppendLaps(ctx, 12, []f1.LapRecord{
			{DriverID: "VER", LapNumber: 3, LapTime: 96 * time.Second, Compound: f1.CompoundHard},
		})

		if err != nil {
			t.Fatal(err)
		}

		laps, err := repository.Laps(ctx, 12, "VER")

		if err != nil {
			t.Fatal(err)
		}

		if len(laps) != 3 || laps[2].Compound != f1.CompoundHard {
			t.Errorf("unexpected laps after append: %v", laps)
		}
	})

	t.Run("Invalid lap", func(t *testing.T) {
		err := repository.AppendLaps(ctx, 21, []f1.LapRecord{{DriverID: "VER", LapNumber: 0, LapTime: time.Minute}})

		if !errors.Is(err, ErrInvalidLap) {
			t.Errorf("expected ErrInvalidLap, got %v", err)
		}
	})

	t.Run("Unknown session", func(t *testing.T) {
		err := repository.AppendLaps(ctx, 404, []f1.LapRecord{{DriverID: "VER", LapNumber: 1, LapTime: time.Minute}})

		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRepositoryReseedLaps(t *testing.T) {
	ctx := context.Background()
	repository := newSeededRepository(t)

	err := repository.ReseedLaps(ctx, 11, []f1.LapRecord{
		{DriverID: "HAM", LapNumber: 1, LapTime: 89500 * time.Millisecond, Compound: f1.CompoundSoft},
	})

	if err != nil {
		t.Fatal(err)
	}

	laps, err := repository.Laps(ctx, 11, "")

	if err != nil {
		t.Fatal(err)
	}

	if len(laps) != 1 || laps[0].DriverID != "HAM" {
		t.Errorf("reseed did not replace laps: %v", laps)
	}

	// a failed reseed rolls back and keeps the previous laps
	err = repository.ReseedLaps(ctx, 11, []f1.LapRecord{{DriverID: "", LapNumber: 1, LapTime: time.Minute}})

	if !errors.Is(err, ErrInvalidLap) {
		t.Fatalf("expected ErrInvalidLap, got %v", err)
	}

	laps, err = repository.Laps(ctx, 11, "")

	if err != nil {
		t.Fatal(err)
	}

	if len(laps) != 1 || laps[0].DriverID != "HAM" {
		t.Errorf("failed reseed was not rolled back: %v", laps)
	}
}

func TestRepositorySeedIsAtomic(t *testing.T) {
	ctx := context.Background()
	repository := newTestRepository(t)

	fixture := &Fixture{
		Events: []EventFixture{
			{
				ID: 1, Name: "Monaco Grand Prix", Year: 2024, Round: 8,
				Sessions: []SessionFixture{
					{ID: 1, Type: "race", StartTime: "2024-05-26T13:00:00Z"},
					{ID: 2, Type: "warmup", StartTime: "2024-05-26T09:00:00Z"},
				},
			},
		},
	}

	if err := repository.Seed(ctx, fixture); err == nil {
		t.Fatal("expected the unknown session type to be rejected")
	}

	years, err := repository.AvailableYears(ctx)

	if err != nil {
		t.Fatal(err)
	}

	if len(years) != 0 {
		t.Errorf("rejected seed left data behind: %v", years)
	}
}

func TestDecodeRejectsInvalidRows(t *testing.T) {
	valid := Row{
		"id":         int64(1),
		"event_id":   int64(1),
		"type":       "race",
		"name":       "",
		"start_time": "2024-03-02T15:00:00Z",
		"status":     "completed",
		"total_laps": int64(57),
	}

	if _, err := decodeSession(valid); err != nil {
		t.Fatal(err)
	}

	for column, value := range map[string]interface{}{
		"id":         nil,
		"type":       "warmup",
		"start_time": "yesterday",
		"status":     "",
		"total_laps": 1.5,
	} {
		t.Run(column, func(t *testing.T) {
			row := make(Row)

			for k, v := range valid {
				row[k] = v
			}

			row[column] = value

			_, err := decodeSession(row)

			var rowErr *RowError

			if !errors.As(err, &rowErr) || rowErr.Column != column {
				t.Errorf("expected a row error on %s, got %v", column, err)
			}
		})
	}
}

func TestTransactionDiscardsConnectionWhenRollbackFails(t *testing.T) {
	ctx := context.Background()
	repository := newTestRepository(t)
	rejected := errors.New("lap feed rejected")

	err := repository.inTransaction(ctx, func(conn *Conn) error {
		// ending the transaction here leaves nothing for ROLLBACK to undo
		if _, err := repository.executor.Exec(ctx, conn, "COMMIT"); err != nil {
			return err
		}

		return rejected
	})

	if !errors.Is(err, rejected) {
		t.Fatalf("expected the transaction error, got %v", err)
	}

	if stats := repository.pool.Stats(); stats.Discarded != 1 || stats.Lent != 0 {
		t.Errorf("expected the connection to be discarded after a failed rollback: %+v", stats)
	}

	if _, err := repository.AvailableYears(ctx); err != nil {
		t.Errorf("the pool did not recover after discarding a connection: %s", err)
	}
}
