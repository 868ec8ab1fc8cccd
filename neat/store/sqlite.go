package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/baldhumanity/neat4go/neat"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in a SQLite database file, one row per run and
// generation.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore returns a store backed by the database file at path. The file
// is opened by Init.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the snapshot table if needed. Calling it
// again on an open store does nothing.
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

// SaveSnapshot upserts snap under its run and generation.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, runID string, snap *neat.Snapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := encode(snap)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, generation, species, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			species = excluded.species,
			payload = excluded.payload
	`, runID, snap.Generation, len(snap.Species), payload)
	return err
}

// GetSnapshot returns the snapshot of one generation. The bool is false when
// no row exists.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, runID string, generation int) (*neat.Snapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE run_id = ? AND generation = ?`, runID, generation).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	snap, err := decode(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s/%d: %w", runID, generation, err)
	}
	return snap, true, nil
}

// LatestSnapshot returns the snapshot with the highest generation of the run.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, runID string) (*neat.Snapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var generation int
	err = db.QueryRowContext(ctx, `SELECT generation FROM snapshots WHERE run_id = ? ORDER BY generation DESC LIMIT 1`, runID).Scan(&generation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return s.GetSnapshot(ctx, runID, generation)
}

// Generations lists the saved generations of a run in ascending order.
func (s *SQLiteStore) Generations(ctx context.Context, runID string) ([]int, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT generation FROM snapshots WHERE run_id = ? ORDER BY generation`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var generations []int
	for rows.Next() {
		var g int
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		generations = append(generations, g)
	}
	return generations, rows.Err()
}

// Close releases the database handle.
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
		CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			species INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`)
	return err
}
