package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/dripsheet/dripsheet/internal/config"
)

// pingTimeout bounds the reachability check made when the journal is opened.
const pingTimeout = 5 * time.Second

// Postgres is the connection to the send journal database.
type Postgres struct {
	*sql.DB
}

// NewPostgres opens the journal database and fails fast when it is
// unreachable, so a run never starts sending with a journal it cannot write.
func NewPostgres(cfg config.DatabaseConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// A run writes one journal row per send, one at a time.
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(max(1, cfg.MaxConnections/4))
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal database %s:%d is unreachable: %w", cfg.Host, cfg.Port, err)
	}

	return &Postgres{DB: db}, nil
}

// HealthCheck pings the journal database. Used by `dripsheet check`.
func (p *Postgres) HealthCheck(ctx context.Context) error {
	return p.PingContext(ctx)
}
