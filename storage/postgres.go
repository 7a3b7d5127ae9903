package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ruteri/timelock-vault/interfaces"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS vault_records (
    address    BYTEA PRIMARY KEY,
    data       BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// pgPool is the part of pgxpool.Pool the store uses.
type pgPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore keeps records in a PostgreSQL table.
type PostgresStore struct {
	pool        pgPool
	log         *slog.Logger
	locationURI string
}

// NewPostgresStore connects to dsn and creates the record table if needed.
func NewPostgresStore(ctx context.Context, dsn string, log *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	cfg := pool.Config().ConnConfig
	return newPostgresStore(ctx, pool, fmt.Sprintf("postgres://%s:%d/%s", cfg.Host, cfg.Port, cfg.Database), log)
}

func newPostgresStore(ctx context.Context, pool pgPool, locationURI string, log *slog.Logger) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &PostgresStore{
		pool:        pool,
		log:         log,
		locationURI: locationURI,
	}, nil
}

func (s *PostgresStore) Load(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, "SELECT data FROM vault_records WHERE address = $1", addr.Bytes()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, addr interfaces.Address, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vault_records (address, data) VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		addr.Bytes(), data)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Available(ctx context.Context) bool {
	if err := s.pool.Ping(ctx); err != nil {
		s.log.Debug("Postgres store unavailable", "err", err)
		return false
	}
	return true
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) LocationURI() string { return s.locationURI }

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
