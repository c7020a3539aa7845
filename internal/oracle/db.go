package oracle

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/godror/godror"

	"github.com/malbeclabs/oracle-mcp/internal/metrics"
)

const (
	defaultMaxOpenConns        = 8
	defaultMaxIdleConns        = 2
	defaultConnMaxLifetime     = 30 * time.Minute
	defaultPingRetries         = 5
	defaultPingInitialInterval = 500 * time.Millisecond
)

type Config struct {
	Logger *slog.Logger

	Username string
	Password string
	// DSN is an easy-connect string (host:port/service) or a tnsnames alias.
	DSN string

	// Connector replaces the godror connector built from the credentials above.
	Connector driver.Connector

	MaxOpenConns        int
	MaxIdleConns        int
	ConnMaxLifetime     time.Duration
	PingRetries         uint64
	PingInitialInterval time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Connector == nil {
		if cfg.Username == "" {
			return fmt.Errorf("username is required")
		}
		if cfg.Password == "" {
			return fmt.Errorf("password is required")
		}
		if cfg.DSN == "" {
			return fmt.Errorf("dsn is required")
		}
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if cfg.PingRetries == 0 {
		cfg.PingRetries = defaultPingRetries
	}
	if cfg.PingInitialInterval == 0 {
		cfg.PingInitialInterval = defaultPingInitialInterval
	}
	return nil
}

// DB is the process-wide Oracle handle. It hands out pinned sessions and
// reopens the pool after the database reports that connections were lost.
// Failed calls are not retried here.
type DB struct {
	log       *slog.Logger
	cfg       Config
	connector driver.Connector

	mu     sync.RWMutex // protects db and closed during recovery
	db     *sql.DB
	closed bool
}

// NewDB opens the pool and waits for the database to answer a ping, backing
// off between attempts.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate oracle config: %w", err)
	}

	connector := cfg.Connector
	if connector == nil {
		connector = newConnector(cfg)
	}

	r := &DB{
		log:       cfg.Logger,
		cfg:       cfg,
		connector: connector,
	}
	r.db = r.open()

	if err := r.pingWithBackoff(ctx); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to connect to oracle: %w", err)
	}
	return r, nil
}

func newConnector(cfg Config) driver.Connector {
	var params godror.ConnectionParams
	params.Username = cfg.Username
	params.Password = godror.NewPassword(cfg.Password)
	params.ConnectString = cfg.DSN
	return godror.NewConnector(params)
}

func (r *DB) open() *sql.DB {
	db := sql.OpenDB(r.connector)
	db.SetMaxOpenConns(r.cfg.MaxOpenConns)
	db.SetMaxIdleConns(r.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(r.cfg.ConnMaxLifetime)
	return db
}

func (r *DB) pingWithBackoff(ctx context.Context) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.cfg.PingInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, r.cfg.PingRetries), ctx)

	return backoff.RetryNotify(func() error {
		return r.PingContext(ctx)
	}, policy, func(err error, wait time.Duration) {
		r.log.Warn("oracle: ping failed, retrying", "error", err, "in", wait)
	})
}

func (r *DB) current() *sql.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db
}

// recover replaces stale with a fresh pool. Sessions already borrowed from
// stale keep working until their owners release them. Nothing happens if
// another caller already replaced stale or the handle is closed.
func (r *DB) recover(stale *sql.DB, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.db != stale {
		return
	}

	r.log.Warn("oracle: connection lost, reopening pool", "error", cause)

	if err := r.db.Close(); err != nil {
		r.log.Debug("oracle: failed to close stale pool", "error", err)
	}
	r.db = r.open()
	metrics.DBRecoveriesTotal.WithLabelValues("reopened").Inc()
}

func (r *DB) observe(ctx context.Context, pool *sql.DB, err error) {
	if err == nil || ctx.Err() != nil {
		return
	}
	if IsConnectionError(err) {
		r.recover(pool, err)
	}
}

// Observe reports an error seen on a session obtained from Conn. A lost
// connection reopens the pool.
func (r *DB) Observe(ctx context.Context, err error) {
	r.observe(ctx, r.current(), err)
}

// withPool runs fn against the current pool. A call that raced with a
// recovery and found its pool closed is retried once on the replacement.
func withPool[T any](ctx context.Context, r *DB, fn func(*sql.DB) (T, error)) (T, error) {
	pool := r.current()
	res, err := fn(pool)
	if isPoolClosed(err) {
		if fresh := r.current(); fresh != pool {
			pool = fresh
			res, err = fn(pool)
		}
	}
	if err != nil {
		r.observe(ctx, pool, err)
	}
	return res, err
}

// Conn pins a single session from the pool. The caller must Close it.
func (r *DB) Conn(ctx context.Context) (*sql.Conn, error) {
	return withPool(ctx, r, func(db *sql.DB) (*sql.Conn, error) {
		return db.Conn(ctx)
	})
}

func (r *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return withPool(ctx, r, func(db *sql.DB) (*sql.Rows, error) {
		return db.QueryContext(ctx, query, args...)
	})
}

func (r *DB) PingContext(ctx context.Context) error {
	return r.current().PingContext(ctx)
}

func (r *DB) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
