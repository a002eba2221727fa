package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	// ErrConfiguration means the database URL is missing. The service starts
	// without it; only operations that need storage report this.
	ErrConfiguration = errors.New("conversation: database url is not configured")

	// ErrStorageUnavailable means the database could not be reached or a
	// connection failed its liveness probe.
	ErrStorageUnavailable = errors.New("conversation: storage unavailable")
)

// PoolOptions configures the shared database pool.
type PoolOptions struct {
	// DriverName selects the database/sql driver (defaults to "postgres").
	DriverName string

	// DSN is the database connection string. May be empty; Acquire then
	// returns ErrConfiguration instead of failing at startup.
	DSN string

	// MaxOpenConns bounds concurrent connections (defaults to 20).
	MaxOpenConns int

	// ConnMaxLifetime retires connections after this age so long-lived ones
	// cannot go stale behind proxies and load balancers (defaults to 5m).
	ConnMaxLifetime time.Duration
}

// Pool hands out a lazily opened, health-checked database handle. The first
// Acquire opens it; later ones reuse it. No idle connections are kept, so a
// quiet service holds no sockets.
type Pool struct {
	opts PoolOptions

	mu sync.Mutex
	db *sqlx.DB
}

// NewPool prepares a pool without touching the database.
func NewPool(opts PoolOptions) *Pool {
	if opts.DriverName == "" {
		opts.DriverName = "postgres"
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 20
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	return &Pool{opts: opts}
}

// Acquire returns the shared handle, opening it on first use and probing
// liveness on every call so a dead connection is replaced before the caller
// runs a query.
func (p *Pool) Acquire(ctx context.Context) (*sqlx.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		if p.opts.DSN == "" {
			return nil, ErrConfiguration
		}
		db, err := sqlx.Open(p.opts.DriverName, p.opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: open: %v", ErrStorageUnavailable, err)
		}
		db.SetMaxOpenConns(p.opts.MaxOpenConns)
		db.SetMaxIdleConns(0)
		db.SetConnMaxLifetime(p.opts.ConnMaxLifetime)
		p.db = db
	}

	if err := p.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", ErrStorageUnavailable, err)
	}
	return p.db, nil
}
