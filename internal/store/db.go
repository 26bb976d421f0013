package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Pool sizes the database/sql connection pool.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// ServerPool suits the API process, where render and search traffic share the
// pool with editor writes.
var ServerPool = Pool{MaxOpen: 16, MaxIdle: 8, MaxLifetime: 30 * time.Minute, MaxIdleTime: 5 * time.Minute}

// ToolPool suits one-shot clubctl commands.
var ToolPool = Pool{MaxOpen: 2, MaxIdle: 1, MaxLifetime: 5 * time.Minute, MaxIdleTime: time.Minute}

// Open connects with ServerPool settings.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	return OpenWithPool(ctx, databaseURL, ServerPool)
}

// OpenWithPool connects through the pgx stdlib driver and verifies the
// connection before returning. The handle is closed if the ping fails.
func OpenWithPool(ctx context.Context, databaseURL string, pool Pool) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("open database: empty connection URL")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool.apply(db)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (p Pool) apply(db *sql.DB) {
	if p.MaxOpen > 0 {
		db.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		db.SetMaxIdleConns(p.MaxIdle)
	}
	db.SetConnMaxLifetime(p.MaxLifetime)
	db.SetConnMaxIdleTime(p.MaxIdleTime)
}
