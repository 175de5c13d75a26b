package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a SQLite database file
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema. It is idempotent.
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
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS evaluations (
			id           TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			generation   INTEGER NOT NULL,
			value        REAL NOT NULL,
			outcome      TEXT NOT NULL,
			scores       BLOB NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL
		)`); err != nil {
		_ = db.Close()
		return fmt.Errorf("create evaluations table: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := prepare(rec); err != nil {
		return err
	}
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO evaluations (id, candidate_id, generation, value, outcome, scores, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CandidateID, rec.Generation, rec.Value, rec.Outcome, scores, rec.Error, rec.CreatedAt.UnixNano())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", ErrRecordExists, rec.ID)
	}
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, candidate_id, generation, value, outcome, scores, error, created_at
		FROM evaluations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

// List returns up to limit records, newest first
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Record, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, candidate_id, generation, value, outcome, scores, error, created_at
		FROM evaluations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
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
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec     Record
		scores  []byte
		created int64
	)
	if err := row.Scan(&rec.ID, &rec.CandidateID, &rec.Generation, &rec.Value, &rec.Outcome, &scores, &rec.Error, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scores, &rec.Scores); err != nil {
		return nil, fmt.Errorf("decode scores of %s: %w", rec.ID, err)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}

var _ Recorder = (*SQLiteStore)(nil)
