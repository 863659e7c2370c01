//go:build sqlite

package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps checkpoints and metrics in a SQLite database.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, name string, c *Checkpoint) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	blob, err := Encode(c)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO checkpoints (name, id, arch, epoch, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			arch = excluded.arch,
			epoch = excluded.epoch,
			payload = excluded.payload
	`, name, c.ID, c.Arch(), c.Epoch, blob)
	return err
}

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, name string) (*Checkpoint, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM checkpoints WHERE name = ?`, name).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	c, err := Decode(blob)
	if err != nil {
		return nil, false, fmt.Errorf("decode checkpoint %s: %w", name, err)
	}
	return c, true, nil
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM checkpoints ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) SaveMetrics(ctx context.Context, runID string, history []EpochMetrics) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(history)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO metrics (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetMetrics(ctx context.Context, runID string) ([]EpochMetrics, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM metrics WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var history []EpochMetrics
	if err := json.Unmarshal(payload, &history); err != nil {
		return nil, false, fmt.Errorf("decode metrics %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			name TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			arch TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS metrics (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
