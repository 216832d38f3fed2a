package storage

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/config"
	"github.com/checkmateLL/F1LiveDashboard-New/internal/metrics"

	_ "modernc.org/sqlite"
)

type ConnState int32

const (
	ConnIdle ConnState = iota
	ConnLent
	ConnBroken
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnLent:
		return "lent"
	case ConnBroken:
		return "broken"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is a database connection owned by a Pool. It is only usable between
// Acquire and Release.
type Conn struct {
	id    uint64
	conn  *sqlx.Conn
	state atomic.Int32
}

func (c *Conn) ID() uint64 {
	return c.id
}

func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// MarkBroken flags the connection so that Release discards it instead of
// returning it to the idle set.
func (c *Conn) MarkBroken() {
	c.state.CompareAndSwap(int32(ConnLent), int32(ConnBroken))
}

func (c *Conn) usable() bool {
	state := c.State()

	return state == ConnLent || state == ConnBroken
}

type PoolStats struct {
	Size      int    `json:"size"`
	Idle      int    `json:"idle"`
	Lent      int    `json:"lent"`
	Open      int    `json:"open"`
	Discarded uint64 `json:"discarded"`
}

type Pool struct {
	db     *sqlx.DB
	slots  *semaphore.Weighted
	size   int
	logger logrus.FieldLogger

	acquireTimeout time.Duration

	mutex     sync.Mutex
	idle      []*Conn
	lent      int
	open      int
	discarded uint64
	closed    bool

	nextID atomic.Uint64
}

func dsn(cfg config.Database) string {
	values := url.Values{}
	values.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	values.Add("_pragma", "journal_mode(WAL)")
	values.Add("_pragma", "foreign_keys(1)")
	values.Add("_pragma", "synchronous(NORMAL)")

	return "file:" + filepath.ToSlash(filepath.Clean(cfg.Path)) + "?" + values.Encode()
}

// Open opens the database at cfg.Path. Connections are opened lazily on Acquire.
func Open(cfg config.Database, logger logrus.FieldLogger) (*Pool, error) {
	if cfg.PoolSize < 1 {
		return nil, config.ErrInvalidPoolSize
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "storage: could not create database directory")
		}
	}

	db, err := sqlx.Open("sqlite", dsn(cfg))

	if err != nil {
		return nil, &QueryFailedError{Op: "open", Cause: err}
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &QueryFailedError{Op: "ping", Cause: err}
	}

	logger.Infof("Opened database %s with a pool of %d connections", cfg.Path, cfg.PoolSize)

	return &Pool{
		db:             db,
		slots:          semaphore.NewWeighted(int64(cfg.PoolSize)),
		size:           cfg.PoolSize,
		logger:         logger,
		acquireTimeout: cfg.AcquireTimeout,
	}, nil
}

// Acquire lends a connection to the caller, waiting up to timeout for one to
// become available. A zero timeout uses the configured acquire timeout.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = p.acquireTimeout
	}

	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	started := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			metrics.PoolAcquireFailures.WithLabelValues("cancelled").Inc()
			return nil, ctx.Err()
		}

		metrics.PoolAcquireFailures.WithLabelValues("exhausted").Inc()

		return nil, &PoolExhaustedError{Timeout: timeout, Size: p.size}
	}

	metrics.PoolAcquireWait.Observe(time.Since(started).Seconds())

	conn, err := p.take(waitCtx)

	if err != nil {
		p.slots.Release(1)

		return nil, err
	}

	// the caller gave up while we were opening a connection: the pool keeps it.
	if ctx.Err() != nil {
		p.Release(conn)
		metrics.PoolAcquireFailures.WithLabelValues("cancelled").Inc()

		return nil, ctx.Err()
	}

	return conn, nil
}

// take must be called holding a slot.
func (p *Pool) take(ctx context.Context) (*Conn, error) {
	p.mutex.Lock()

	if p.closed {
		p.mutex.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.lent++
		conn.state.Store(int32(ConnLent))
		p.updateGauges()
		p.mutex.Unlock()

		return conn, nil
	}

	// reserve the slot for a new connection before dropping the lock
	p.open++
	p.mutex.Unlock()

	sqlConn, err := p.db.Connx(ctx)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err != nil {
		p.open--
		p.updateGauges()
		metrics.PoolAcquireFailures.WithLabelValues("connect").Inc()

		return nil, &QueryFailedError{Op: "connect", Cause: err}
	}

	conn := &Conn{id: p.nextID.Add(1), conn: sqlConn}
	conn.state.Store(int32(ConnLent))
	p.lent++
	p.updateGauges()

	p.logger.Debugf("Opened pooled connection #%d", conn.id)

	return conn, nil
}

// Release returns a lent connection to the pool. A connection marked broken
// is discarded; its replacement is opened on a later Acquire.
func (p *Pool) Release(conn *Conn) error {
	if conn == nil {
		return ErrConnNotLent
	}

	p.mutex.Lock()

	switch conn.State() {
	case ConnLent:
		p.lent--

		if p.closed {
			p.open--
			conn.state.Store(int32(ConnClosed))
			p.updateGauges()
			p.mutex.Unlock()

			if err := conn.conn.Close(); err != nil {
				p.logger.WithError(err).Warnf("Could not close connection #%d", conn.id)
			}

			p.slots.Release(1)

			return nil
		}

		conn.state.Store(int32(ConnIdle))
		p.idle = append(p.idle, conn)
		p.updateGauges()
		p.mutex.Unlock()
	case ConnBroken:
		p.lent--
		p.open--
		p.discarded++
		conn.state.Store(int32(ConnClosed))
		p.updateGauges()
		p.mutex.Unlock()

		metrics.PoolDiscarded.Inc()
		p.logger.Warnf("Discarding broken connection #%d", conn.id)

		p.discard(conn)
	default:
		p.mutex.Unlock()

		return ErrConnNotLent
	}

	p.slots.Release(1)

	return nil
}

// discard closes the underlying driver connection rather than handing it back
// to database/sql's own idle list.
func (p *Pool) discard(conn *Conn) {
	err := conn.conn.Raw(func(interface{}) error {
		return driver.ErrBadConn
	})

	if err != nil && !errors.Is(err, driver.ErrBadConn) {
		p.logger.WithError(err).Debugf("Discarding connection #%d", conn.id)
	}

	_ = conn.conn.Close()
}

func (p *Pool) Stats() PoolStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return PoolStats{
		Size:      p.size,
		Idle:      len(p.idle),
		Lent:      p.lent,
		Open:      p.open,
		Discarded: p.discarded,
	}
}

func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) isClosed() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.closed
}

// updateGauges must be called with the mutex held.
func (p *Pool) updateGauges() {
	metrics.PoolConnections.WithLabelValues("idle").Set(float64(len(p.idle)))
	metrics.PoolConnections.WithLabelValues("lent").Set(float64(p.lent))
	metrics.PoolConnections.WithLabelValues("open").Set(float64(p.open))
}

// Close closes all idle connections and the database. Connections still lent
// are closed when they are released.
func (p *Pool) Close() error {
	p.mutex.Lock()

	if p.closed {
		p.mutex.Unlock()
		return nil
	}

	p.closed = true
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	p.updateGauges()
	p.mutex.Unlock()

	for _, conn := range idle {
		conn.state.Store(int32(ConnClosed))

		if err := conn.conn.Close(); err != nil {
			p.logger.WithError(err).Warnf("Could not close connection #%d", conn.id)
		}
	}

	p.logger.Infof("Closing database pool")

	return p.db.Close()
}

// WithConn acquires a connection, runs fn and releases the connection. fn may
// mark the connection broken.
func (p *Pool) WithConn(ctx context.Context, fn func(conn *Conn) error) error {
	conn, err := p.Acquire(ctx, 0)

	if err != nil {
		return err
	}

	defer func() {
		if err := p.Release(conn); err != nil {
			p.logger.WithError(err).Error("Could not release connection")
		}
	}()

	return fn(conn)
}
