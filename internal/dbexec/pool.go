// Package dbexec owns the bounded session pool through which every database
// call is issued.
//
// A pool of capacity N is a counting semaphore of weight N over sessions
// drawn from a *sqlx.DB whose max-open limit is also N. A Lease pins one
// session for one query and must be released exactly once.
package dbexec

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"eventgraph/internal/logging"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/semaphore"
)

const healthCheckTimeout = 2 * time.Second

// PoolConfig controls pool sizing and error handling.
type PoolConfig struct {
	Capacity int
	// AcquireTimeout bounds the wait for a free session. Zero waits until the context ends.
	AcquireTimeout time.Duration
	// HealthCheckOnError pings a session that saw a statement-level error
	// before it goes back into service.
	HealthCheckOnError bool
	Logger             *logging.Logger
	// OnAcquire, if set, observes every acquire attempt.
	OnAcquire func(ctx context.Context, wait time.Duration, err error)
}

// PoolStats is a snapshot of pool occupancy. Idle is derived as
// Capacity - Leased; Leased is the counter the pool maintains.
type PoolStats struct {
	Capacity int64
	Leased   int64
	Idle     int64
}

// Pool hands out leases over a fixed number of interchangeable sessions.
type Pool struct {
	db                 *sqlx.DB
	sem                *semaphore.Weighted
	capacity           int64
	leased             atomic.Int64
	acquireTimeout     time.Duration
	healthCheckOnError bool
	logger             *logging.Logger
	onAcquire          func(context.Context, time.Duration, error)
}

// NewPool wraps db in a pool of cfg.Capacity sessions.
func NewPool(db *sqlx.DB, cfg PoolConfig) (*Pool, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("pool capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.AcquireTimeout < 0 {
		return nil, fmt.Errorf("acquire timeout must not be negative, got %s", cfg.AcquireTimeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}

	db.SetMaxOpenConns(cfg.Capacity)
	db.SetMaxIdleConns(cfg.Capacity)

	return &Pool{
		db:                 db,
		sem:                semaphore.NewWeighted(int64(cfg.Capacity)),
		capacity:           int64(cfg.Capacity),
		acquireTimeout:     cfg.AcquireTimeout,
		healthCheckOnError: cfg.HealthCheckOnError,
		logger:             logger,
		onAcquire:          cfg.OnAcquire,
	}, nil
}

// Acquire blocks until a session is free, the acquire timeout elapses
// (ErrPoolExhausted) or ctx ends (ctx.Err()).
func (p *Pool) Acquire(ctx context.Context) (lease *Lease, err error) {
	start := time.Now()
	if p.onAcquire != nil {
		defer func() { p.onAcquire(ctx, time.Since(start), err) }()
	}

	waitCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: no session within %s", ErrPoolExhausted, p.acquireTimeout)
	}
	p.leased.Add(1)

	conn, err := p.db.Connx(ctx)
	if err != nil {
		p.leased.Add(-1)
		p.sem.Release(1)
		qe := newQueryError(err)
		if ctx.Err() == nil {
			qe.ConnectionLevel = true
		}
		return nil, qe
	}

	return &Lease{pool: p, conn: conn, acquiredAt: time.Now()}, nil
}

// Release returns the lease's session to the pool. Only the first call for a
// lease has any effect.
func (p *Pool) Release(lease *Lease) {
	if lease == nil {
		return
	}
	if !lease.released.CompareAndSwap(false, true) {
		p.logger.Debug("lease released more than once")
		return
	}
	defer func() {
		p.leased.Add(-1)
		p.sem.Release(1)
	}()

	broken, statementFailed := lease.outcome()
	if !broken && statementFailed && p.healthCheckOnError {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		if err := lease.conn.PingContext(ctx); err != nil {
			p.logger.Warn("session failed health check after statement error", slog.String("error", err.Error()))
			broken = true
		}
		cancel()
	}

	if broken {
		p.logger.Warn("discarding broken session",
			slog.Duration("held", time.Since(lease.acquiredAt)),
		)
		// Returning ErrBadConn from Raw makes database/sql close the session
		// instead of putting it back in its idle list.
		_ = lease.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	_ = lease.conn.Close()
}

// Execute runs query on the leased session and returns a lazy row stream.
// The caller closes the stream before releasing the lease.
func (p *Pool) Execute(ctx context.Context, lease *Lease, query string, args ...interface{}) (*RowStream, error) {
	if lease == nil || lease.released.Load() {
		return nil, ErrLeaseReleased
	}
	rows, err := lease.conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, lease.record(err)
	}
	return &RowStream{rows: rows, lease: lease}, nil
}

// Stats reports current occupancy.
func (p *Pool) Stats() PoolStats {
	leased := p.leased.Load()
	return PoolStats{
		Capacity: p.capacity,
		Leased:   leased,
		Idle:     p.capacity - leased,
	}
}

// PingContext checks database reachability on a leased session, so a ping
// never opens a session beyond capacity. When every session stays leased
// until ctx ends, it returns the acquire error. A session that fails the
// ping is discarded.
func (p *Pool) PingContext(ctx context.Context) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(lease)

	if err := lease.conn.PingContext(ctx); err != nil {
		lease.mu.Lock()
		lease.broken = true
		lease.mu.Unlock()
		return newQueryError(err)
	}
	return nil
}

// DB exposes the underlying handle for stats reporting.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}

// Lease is an exclusive borrow of one pooled session.
type Lease struct {
	pool       *Pool
	conn       *sqlx.Conn
	acquiredAt time.Time
	released   atomic.Bool

	mu              sync.Mutex
	broken          bool
	statementFailed bool
}

// Release is shorthand for pool.Release(lease).
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.pool.Release(l)
}

// record classifies err against the lease and returns it as a *QueryError.
func (l *Lease) record(err error) error {
	if err == nil {
		return nil
	}
	qe := newQueryError(err)
	l.mu.Lock()
	if qe.ConnectionLevel {
		l.broken = true
	} else {
		l.statementFailed = true
	}
	l.mu.Unlock()
	return qe
}

func (l *Lease) outcome() (broken, statementFailed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.broken, l.statementFailed
}

// RowStream is a forward-only cursor over one statement's results.
type RowStream struct {
	rows  *sqlx.Rows
	lease *Lease
}

// Next advances to the next row.
func (s *RowStream) Next() bool {
	return s.rows.Next()
}

// StructScan scans the current row into dest by db tag.
func (s *RowStream) StructScan(dest interface{}) error {
	return s.rows.StructScan(dest)
}

// Columns returns the result set's column names.
func (s *RowStream) Columns() ([]string, error) {
	cols, err := s.rows.Columns()
	if err != nil {
		return nil, s.lease.record(err)
	}
	return cols, nil
}

// Err returns the error, if any, that ended iteration.
func (s *RowStream) Err() error {
	return s.lease.record(s.rows.Err())
}

// Close closes the stream. It is safe to call more than once.
func (s *RowStream) Close() error {
	return s.lease.record(s.rows.Close())
}
