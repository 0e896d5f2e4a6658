package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// PostgresKV is a KV backend over a single Postgres table, for deployments
// that already run Postgres for their other services and would rather not
// operate a second storage engine just for chain state.
type PostgresKV struct {
	db     *sql.DB
	logger *log.Logger
}

// PostgresOption configures a PostgresKV at construction time.
type PostgresOption func(*PostgresKV)

func WithPostgresLogger(logger *log.Logger) PostgresOption {
	return func(p *PostgresKV) { p.logger = logger }
}

// PostgresConfig holds the connection-pool knobs, mirroring the teacher's
// database client configuration.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// OpenPostgresKV connects to Postgres, configures the pool, and ensures the
// backing table exists.
func OpenPostgresKV(cfg PostgresConfig, opts ...PostgresOption) (*PostgresKV, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage: postgres DSN must not be empty")
	}

	p := &PostgresKV{logger: log.New(log.Writer(), "[storage/postgres] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(p)
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}

	const createTable = `
CREATE TABLE IF NOT EXISTS chain_kv (
	key   BYTEA PRIMARY KEY,
	value BYTEA NOT NULL
)`
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create chain_kv table: %w", err)
	}

	p.db = db
	p.logger.Printf("connected to postgres (max_open=%d, max_idle=%d)", cfg.MaxOpenConns, cfg.MaxIdleConns)
	return p, nil
}

func (p *PostgresKV) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(`SELECT value FROM chain_kv WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: postgres get: %w", err)
	}
	return value, nil
}

func (p *PostgresKV) Set(key, value []byte) error {
	const upsert = `
INSERT INTO chain_kv (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := p.db.Exec(upsert, key, value); err != nil {
		return fmt.Errorf("storage: postgres set: %w", err)
	}
	return nil
}

func (p *PostgresKV) Close() error {
	return p.db.Close()
}
