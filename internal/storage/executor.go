package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/metrics"
)

// Row maps a column name to its value: int64, float64, string, bool,
// time.Time or nil.
type Row map[string]interface{}

// Executor runs parameterised statements on a lent connection. It does not
// retry and does not manage transactions.
type Executor struct {
	logger logrus.FieldLogger
}

func NewExecutor(logger logrus.FieldLogger) *Executor {
	return &Executor{logger: logger}
}

func (e *Executor) Query(ctx context.Context, conn *Conn, query string, params ...interface{}) ([]Row, error) {
	if conn == nil || !conn.usable() {
		return nil, &QueryFailedError{Op: "query", Query: query, Cause: ErrConnNotLent}
	}

	rows, err := conn.conn.QueryxContext(ctx, query, params...)

	if err != nil {
		return nil, e.failed(conn, "query", query, err)
	}

	defer rows.Close()

	return e.scan(conn, query, rows)
}

// QueryNamed runs a query with :name parameters bound from arg (a struct or a
// map[string]interface{}).
func (e *Executor) QueryNamed(ctx context.Context, conn *Conn, query string, arg interface{}) ([]Row, error) {
	bound, params, err := sqlx.Named(query, arg)

	if err != nil {
		return nil, &QueryFailedError{Op: "bind", Query: query, Cause: err}
	}

	return e.Query(ctx, conn, bound, params...)
}

func (e *Executor) Exec(ctx context.Context, conn *Conn, query string, params ...interface{}) (sql.Result, error) {
	if conn == nil || !conn.usable() {
		return nil, &QueryFailedError{Op: "exec", Query: query, Cause: ErrConnNotLent}
	}

	result, err := conn.conn.ExecContext(ctx, query, params...)

	if err != nil {
		return nil, e.failed(conn, "exec", query, err)
	}

	return result, nil
}

func (e *Executor) scan(conn *Conn, query string, rows *sqlx.Rows) ([]Row, error) {
	var out []Row

	for rows.Next() {
		row := make(map[string]interface{})

		if err := rows.MapScan(row); err != nil {
			return nil, e.failed(conn, "scan", query, err)
		}

		for column, value := range row {
			if b, ok := value.([]byte); ok {
				row[column] = string(b)
			}
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, e.failed(conn, "scan", query, err)
	}

	return out, nil
}

func (e *Executor) failed(conn *Conn, op, query string, err error) error {
	if errors.Is(err, driver.ErrBadConn) {
		conn.MarkBroken()
	}

	metrics.QueryFailures.WithLabelValues(op).Inc()

	e.logger.WithError(err).WithField("op", op).Debugf("Query failed: %s", compact(query))

	return &QueryFailedError{Op: op, Query: compact(query), Cause: err}
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
