package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const badConnDriverName = "storage-badconn"

func init() {
	sql.Register(badConnDriverName, badConnDriver{})
}

// badConnDriver opens connections that fail every statement with
// driver.ErrBadConn, as a dropped database connection would.
type badConnDriver struct{}

func (badConnDriver) Open(string) (driver.Conn, error) {
	return badConn{}, nil
}

type badConn struct{}

func (badConn) Prepare(string) (driver.Stmt, error) {
	return nil, driver.ErrBadConn
}

func (badConn) Close() error {
	return nil
}

func (badConn) Begin() (driver.Tx, error) {
	return nil, driver.ErrBadConn
}

func newBadConnPool(t *testing.T) *Pool {
	t.Helper()

	db, err := sqlx.Open(badConnDriverName, "")

	if err != nil {
		t.Fatal(err)
	}

	pool := &Pool{
		db:             db,
		slots:          semaphore.NewWeighted(1),
		size:           1,
		logger:         logrus.New(),
		acquireTimeout: time.Second,
	}

	t.Cleanup(func() {
		_ = pool.Close()
	})

	return pool
}

func TestExecutor(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 1)
	executor := NewExecutor(logrus.New())

	err := pool.WithConn(ctx, func(conn *Conn) error {
		if _, err := executor.Exec(ctx, conn, "CREATE TABLE drivers (id TEXT PRIMARY KEY, number INTEGER, rating REAL, photo BLOB)"); err != nil {
			return err
		}

		_, err := executor.Exec(ctx, conn, "INSERT INTO drivers (id, number, rating, photo) VALUES (?, ?, ?, ?), (?, ?, ?, ?)",
			"VER", 1, 9.5, []byte("png"),
			"LEC", 16, 9.1, nil,
		)

		return err
	})

	if err != nil {
		t.Fatal(err)
	}

	t.Run("Positional parameters", func(t *testing.T) {
		err := pool.WithConn(ctx, func(conn *Conn) error {
			rows, err := executor.Query(ctx, conn, "SELECT id, number, rating, photo FROM drivers WHERE number > ? ORDER BY number", 0)

			if err != nil {
				return err
			}

			if len(rows) != 2 {
				t.Fatalf("expected 2 rows, got %d", len(rows))
			}

			if rows[0]["id"] != "VER" || rows[0]["number"] != int64(1) || rows[0]["rating"] != 9.5 {
				t.Errorf("unexpected first row: %v", rows[0])
			}

			if rows[0]["photo"] != "png" {
				t.Errorf("blob should be normalised to a string, got %T", rows[0]["photo"])
			}

			if rows[1]["photo"] != nil {
				t.Errorf("expected nil photo, got %v", rows[1]["photo"])
			}

			return nil
		})

		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("Named parameters", func(t *testing.T) {
		err := pool.WithConn(ctx, func(conn *Conn) error {
			rows, err := executor.QueryNamed(ctx, conn, "SELECT id FROM drivers WHERE number = :number", map[string]interface{}{
				"number": 16,
			})

			if err != nil {
				return err
			}

			if len(rows) != 1 || rows[0]["id"] != "LEC" {
				t.Errorf("unexpected rows: %v", rows)
			}

			return nil
		})

		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("Failures are wrapped", func(t *testing.T) {
		err := pool.WithConn(ctx, func(conn *Conn) error {
			_, err := executor.Query(ctx, conn, "SELECT nope FROM   drivers")

			if conn.State() != ConnLent {
				t.Errorf("a failed statement should not break the connection, state is %s", conn.State())
			}

			return err
		})

		var queryFailed *QueryFailedError

		if !errors.As(err, &queryFailed) {
			t.Fatalf("expected a QueryFailedError, got %v", err)
		}

		if queryFailed.Op != "query" || queryFailed.Query != "SELECT nope FROM drivers" {
			t.Errorf("unexpected error details: %+v", queryFailed)
		}

		if stats := pool.Stats(); stats.Discarded != 0 {
			t.Errorf("connection should not have been discarded: %+v", stats)
		}
	})

	t.Run("Connection not lent", func(t *testing.T) {
		_, err := executor.Query(ctx, nil, "SELECT 1")

		if !errors.Is(err, ErrConnNotLent) || !IsQueryFailed(err) {
			t.Errorf("expected a query failure caused by ErrConnNotLent, got %v", err)
		}
	})
}

func TestExecutorMarksBadConnectionsBroken(t *testing.T) {
	ctx := context.Background()
	pool := newBadConnPool(t)
	executor := NewExecutor(logrus.New())

	conn, err := pool.Acquire(ctx, 0)

	if err != nil {
		t.Fatal(err)
	}

	_, err = executor.Query(ctx, conn, "SELECT 1")

	var queryErr *QueryFailedError

	if !errors.As(err, &queryErr) || !errors.Is(err, driver.ErrBadConn) {
		t.Fatalf("expected a QueryFailedError caused by driver.ErrBadConn, got %v", err)
	}

	if conn.State() != ConnBroken {
		t.Fatalf("expected the connection to be marked broken, is %s", conn.State())
	}

	if err := pool.Release(conn); err != nil {
		t.Fatal(err)
	}

	if stats := pool.Stats(); stats.Discarded != 1 || stats.Idle != 0 || stats.Open != 0 {
		t.Errorf("the bad connection was not discarded: %+v", stats)
	}

	next, err := pool.Acquire(ctx, 0)

	if err != nil {
		t.Fatal(err)
	}

	defer pool.Release(next)

	if next.ID() == conn.ID() {
		t.Errorf("bad connection #%d was lent again", conn.ID())
	}
}
