package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ruteri/timelock-vault/db"
	"github.com/ruteri/timelock-vault/interfaces"
)

// SQLiteStore keeps records in the shared SQLite database. Writes issued
// inside db.DB.Atomically join the surrounding transaction.
type SQLiteStore struct {
	db *db.DB
}

func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Load(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	var data []byte
	err := s.db.Conn(ctx).QueryRowContext(ctx,
		"SELECT data FROM vault_records WHERE address = ?", addr.Bytes()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return data, nil
}

func (s *SQLiteStore) Save(ctx context.Context, addr interfaces.Address, data []byte) error {
	_, err := s.db.Conn(ctx).ExecContext(ctx,
		`INSERT INTO vault_records (address, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		addr.Bytes(), data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Available(ctx context.Context) bool {
	return s.db.Ping(ctx) == nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) LocationURI() string { return "sqlite://" + s.db.Path() }
