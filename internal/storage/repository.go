package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"github.com/checkmateLL/F1LiveDashboard-New/pkg/f1"
)

var dialect = goqu.Dialect("sqlite3")

// lapInsertBatch keeps multi-row inserts well under SQLite's variable limit.
const lapInsertBatch = 200

var (
	eventColumns   = []interface{}{"id", "name", "year", "round", "location", "country", "latitude", "longitude"}
	sessionColumns = []interface{}{"id", "event_id", "type", "name", "start_time", "status", "total_laps"}
	lapColumns     = []interface{}{"session_id", "driver_id", "lap_number", "lap_time", "sector1", "sector2", "sector3", "compound", "pit"}
)

type statement interface {
	ToSQL() (string, []interface{}, error)
}

// Repository serves typed reads and writes of events, sessions and laps.
// Every call acquires its own connection from the pool.
type Repository struct {
	pool     *Pool
	executor *Executor
	logger   logrus.FieldLogger
}

func NewRepository(pool *Pool, executor *Executor, logger logrus.FieldLogger) *Repository {
	return &Repository{
		pool:     pool,
		executor: executor,
		logger:   logger,
	}
}

func (r *Repository) query(ctx context.Context, conn *Conn, stmt statement) ([]Row, error) {
	query, params, err := stmt.ToSQL()

	if err != nil {
		return nil, &QueryFailedError{Op: "build", Cause: err}
	}

	return r.executor.Query(ctx, conn, query, params...)
}

func (r *Repository) exec(ctx context.Context, conn *Conn, stmt statement) (int64, error) {
	query, params, err := stmt.ToSQL()

	if err != nil {
		return 0, &QueryFailedError{Op: "build", Cause: err}
	}

	result, err := r.executor.Exec(ctx, conn, query, params...)

	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()

	if err != nil {
		return 0, &QueryFailedError{Op: "exec", Query: compact(query), Cause: err}
	}

	return affected, nil
}

func decodeFailed(table string, err error) error {
	return &QueryFailedError{Op: "decode", Query: table, Cause: err}
}

// AvailableYears lists the seasons with at least one event, newest first.
func (r *Repository) AvailableYears(ctx context.Context) ([]int, error) {
	var years []int

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := r.query(ctx, conn, dialect.From(tableEvents).Prepared(true).
			Select("year").Distinct().
			Order(goqu.C("year").Desc()))

		if err != nil {
			return err
		}

		for _, row := range rows {
			year, err := requireInt(row, tableEvents, "year")

			if err != nil {
				return decodeFailed(tableEvents, err)
			}

			years = append(years, int(year))
		}

		return nil
	})

	return years, err
}

// EventsByYear returns the events of a season ordered by round, each with its
// session ids in schedule order.
func (r *Repository) EventsByYear(ctx context.Context, year int) ([]f1.Event, error) {
	var events []f1.Event

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := r.query(ctx, conn, dialect.From(tableEvents).Prepared(true).
			Select(eventColumns...).
			Where(goqu.C("year").Eq(year)).
			Order(goqu.C("round").Asc()))

		if err != nil {
			return err
		}

		ids := make([]int64, 0, len(rows))

		for _, row := range rows {
			event, err := decodeEvent(row)

			if err != nil {
				return decodeFailed(tableEvents, err)
			}

			events = append(events, event)
			ids = append(ids, event.ID)
		}

		if len(ids) == 0 {
			return nil
		}

		sessions, err := r.sessionsWhere(ctx, conn, goqu.C("event_id").In(ids))

		if err != nil {
			return err
		}

		byEvent := make(map[int64][]int64)

		for _, session := range sessions {
			byEvent[session.EventID] = append(byEvent[session.EventID], session.ID)
		}

		for i := range events {
			events[i].SessionIDs = byEvent[events[i].ID]
		}

		return nil
	})

	return events, err
}

// Event returns ErrNotFound when no event has the given id.
func (r *Repository) Event(ctx context.Context, id int64) (f1.Event, error) {
	return r.eventWhere(ctx, goqu.C("id").Eq(id), fmt.Sprintf("event %d", id))
}

// EventByRound looks an event up by its place in a season's calendar.
func (r *Repository) EventByRound(ctx context.Context, year, round int) (f1.Event, error) {
	return r.eventWhere(ctx, goqu.And(goqu.C("year").Eq(year), goqu.C("round").Eq(round)), fmt.Sprintf("round %d of %d", round, year))
}

func (r *Repository) eventWhere(ctx context.Context, where goqu.Expression, what string) (f1.Event, error) {
	var event f1.Event

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := r.query(ctx, conn, dialect.From(tableEvents).Prepared(true).
			Select(eventColumns...).
			Where(where))

		if err != nil {
			return err
		}

		if len(rows) == 0 {
			return errors.Wrap(ErrNotFound, what)
		}

		event, err = decodeEvent(rows[0])

		if err != nil {
			return decodeFailed(tableEvents, err)
		}

		sessions, err := r.sessionsWhere(ctx, conn, goqu.C("event_id").Eq(event.ID))

		if err != nil {
			return err
		}

		for _, session := range sessions {
			event.SessionIDs = append(event.SessionIDs, session.ID)
		}

		return nil
	})

	return event, err
}

// Session returns ErrNotFound when no session has the given id.
func (r *Repository) Session(ctx context.Context, id int64) (f1.Session, error) {
	var session f1.Session

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		sessions, err := r.sessionsWhere(ctx, conn, goqu.C("id").Eq(id))

		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			return errors.Wrapf(ErrNotFound, "session %d", id)
		}

		session = sessions[0]

		return nil
	})

	return session, err
}

// SessionsForEvent returns the sessions of an event in schedule order.
func (r *Repository) SessionsForEvent(ctx context.Context, eventID int64) ([]f1.Session, error) {
	var sessions []f1.Session

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		var err error

		sessions, err = r.sessionsWhere(ctx, conn, goqu.C("event_id").Eq(eventID))

		return err
	})

	return sessions, err
}

func (r *Repository) sessionsWhere(ctx context.Context, conn *Conn, where goqu.Expression) ([]f1.Session, error) {
	rows, err := r.query(ctx, conn, dialect.From(tableSessions).Prepared(true).
		Select(sessionColumns...).
		Where(where))

	if err != nil {
		return nil, err
	}

	sessions := make([]f1.Session, 0, len(rows))

	for _, row := range rows {
		session, err := decodeSession(row)

		if err != nil {
			return nil, decodeFailed(tableSessions, err)
		}

		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return f1.SessionLess(sessions[i], sessions[j])
	})

	return sessions, nil
}

// Laps returns the laps of a session ordered by driver then lap number. An
// empty driverID returns every driver.
func (r *Repository) Laps(ctx context.Context, sessionID int64, driverID string) ([]f1.LapRecord, error) {
	var laps []f1.LapRecord

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		var err error

		laps, err = r.laps(ctx, conn, sessionID, driverID)

		return err
	})

	return laps, err
}

func (r *Repository) laps(ctx context.Context, conn *Conn, sessionID int64, driverID string) ([]f1.LapRecord, error) {
	where := []goqu.Expression{goqu.C("session_id").Eq(sessionID)}

	if driverID != "" {
		where = append(where, goqu.C("driver_id").Eq(driverID))
	}

	rows, err := r.query(ctx, conn, dialect.From(tableLaps).Prepared(true).
		Select(lapColumns...).
		Where(where...).
		Order(goqu.C("driver_id").Asc(), goqu.C("lap_number").Asc()))

	if err != nil {
		return nil, err
	}

	laps := make([]f1.LapRecord, 0, len(rows))

	for _, row := range rows {
		lap, err := decodeLap(row)

		if err != nil {
			return nil, decodeFailed(tableLaps, err)
		}

		laps = append(laps, lap)
	}

	f1.SortLaps(laps)

	return laps, nil
}

func (r *Repository) insertEvent(ctx context.Context, conn *Conn, event f1.Event) error {
	_, err := r.exec(ctx, conn, dialect.Insert(tableEvents).Prepared(true).Rows(goqu.Record{
		"id":        event.ID,
		"name":      event.Name,
		"year":      event.Year,
		"round":     event.Round,
		"location":  event.Location,
		"country":   event.Country,
		"latitude":  event.Latitude,
		"longitude": event.Longitude,
	}))

	return err
}

func (r *Repository) insertSession(ctx context.Context, conn *Conn, session f1.Session) error {
	_, err := r.exec(ctx, conn, dialect.Insert(tableSessions).Prepared(true).Rows(goqu.Record{
		"id":         session.ID,
		"event_id":   session.EventID,
		"type":       string(session.Type),
		"name":       session.Name,
		"start_time": session.StartTime.UTC().Format(time.RFC3339),
		"status":     string(session.Status),
		"total_laps": session.TotalLaps,
	}))

	return err
}

func lapRecord(sessionID int64, lap f1.LapRecord) goqu.Record {
	record := goqu.Record{
		"session_id": sessionID,
		"driver_id":  lap.DriverID,
		"lap_number": lap.LapNumber,
		"lap_time":   lap.LapTime.Milliseconds(),
		"compound":   string(lap.Compound),
		"pit":        0,
	}

	for i, sector := range lap.Sectors {
		column := [...]string{"sector1", "sector2", "sector3"}[i]

		if sector > 0 {
			record[column] = sector.Milliseconds()
		} else {
			record[column] = nil
		}
	}

	if lap.Pit {
		record["pit"] = 1
	}

	return record
}

func (r *Repository) insertLaps(ctx context.Context, conn *Conn, sessionID int64, laps []f1.LapRecord) error {
	for start := 0; start < len(laps); start += lapInsertBatch {
		end := start + lapInsertBatch

		if end > len(laps) {
			end = len(laps)
		}

		rows := make([]interface{}, 0, end-start)

		for _, lap := range laps[start:end] {
			if lap.DriverID == "" || lap.LapNumber < 1 || lap.LapTime <= 0 {
				return errors.Wrapf(ErrInvalidLap, "session %d: %s", sessionID, lap)
			}

			rows = append(rows, lapRecord(sessionID, lap))
		}

		if _, err := r.exec(ctx, conn, dialect.Insert(tableLaps).Prepared(true).Rows(rows...)); err != nil {
			return err
		}
	}

	return nil
}

// inTransaction runs fn between BEGIN IMMEDIATE and COMMIT on a single
// connection, rolling back if fn fails.
func (r *Repository) inTransaction(ctx context.Context, fn func(conn *Conn) error) error {
	return r.pool.WithConn(ctx, func(conn *Conn) error {
		if _, err := r.executor.Exec(ctx, conn, "BEGIN IMMEDIATE"); err != nil {
			return err
		}

		err := fn(conn)

		if err == nil {
			_, err = r.executor.Exec(ctx, conn, "COMMIT")

			if err == nil {
				return nil
			}
		}

		// the caller's context may already be done, the rollback must still run.
		if _, rollbackErr := r.executor.Exec(context.Background(), conn, "ROLLBACK"); rollbackErr != nil {
			r.logger.WithError(rollbackErr).Error("Could not roll back transaction, discarding connection")
			conn.MarkBroken()
		}

		return err
	})
}

// AppendLaps adds new laps to a session. Laps already stored for a completed
// session are never replaced: ErrLapsImmutable is returned instead.
func (r *Repository) AppendLaps(ctx context.Context, sessionID int64, laps []f1.LapRecord) error {
	if len(laps) == 0 {
		return nil
	}

	return r.inTransaction(ctx, func(conn *Conn) error {
		sessions, err := r.sessionsWhere(ctx, conn, goqu.C("id").Eq(sessionID))

		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			return errors.Wrapf(ErrNotFound, "session %d", sessionID)
		}

		if sessions[0].Status == f1.SessionStatusCompleted {
			existing, err := r.laps(ctx, conn, sessionID, "")

			if err != nil {
				return err
			}

			stored := make(map[string]map[int]bool)

			for _, lap := range existing {
				if stored[lap.DriverID] == nil {
					stored[lap.DriverID] = make(map[int]bool)
				}

				stored[lap.DriverID][lap.LapNumber] = true
			}

			for _, lap := range laps {
				if stored[lap.DriverID][lap.LapNumber] {
					return errors.Wrapf(ErrLapsImmutable, "session %d: %s lap %d already recorded", sessionID, lap.DriverID, lap.LapNumber)
				}
			}
		}

		return r.insertLaps(ctx, conn, sessionID, laps)
	})
}

// MarkSessionCompleted flags a session as run. Its laps become append-only.
func (r *Repository) MarkSessionCompleted(ctx context.Context, sessionID int64) error {
	return r.pool.WithConn(ctx, func(conn *Conn) error {
		affected, err := r.exec(ctx, conn, dialect.Update(tableSessions).Prepared(true).
			Set(goqu.Record{"status": string(f1.SessionStatusCompleted)}).
			Where(goqu.C("id").Eq(sessionID)))

		if err != nil {
			return err
		}

		if affected == 0 {
			return errors.Wrapf(ErrNotFound, "session %d", sessionID)
		}

		return nil
	})
}

// ReseedLaps is the administrative correction path: it replaces every lap of
// a session, whatever its status, in one transaction.
func (r *Repository) ReseedLaps(ctx context.Context, sessionID int64, laps []f1.LapRecord) error {
	err := r.inTransaction(ctx, func(conn *Conn) error {
		sessions, err := r.sessionsWhere(ctx, conn, goqu.C("id").Eq(sessionID))

		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			return errors.Wrapf(ErrNotFound, "session %d", sessionID)
		}

		removed, err := r.exec(ctx, conn, dialect.Delete(tableLaps).Prepared(true).
			Where(goqu.C("session_id").Eq(sessionID)))

		if err != nil {
			return err
		}

		r.logger.WithFields(logrus.Fields{
			"session": sessionID,
			"removed": removed,
			"added":   len(laps),
		}).Warn("Reseeding laps")

		return r.insertLaps(ctx, conn, sessionID, laps)
	})

	return err
}
