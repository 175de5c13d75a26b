// Package store persists evaluation records so hosts can inspect past
// fitness results.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
)

// ErrRecordExists is returned when saving a record whose ID is taken
var ErrRecordExists = errors.New("record already exists")

// TrialScore is the score of one activated scenario
type TrialScore struct {
	Trial    int     `json:"trial"`
	Scenario int     `json:"scenario"`
	Score    float64 `json:"score"`
}

// Record is one finished evaluation
type Record struct {
	ID          string       `json:"id"`
	CandidateID string       `json:"candidate_id"`
	Generation  int          `json:"generation"`
	Value       float64      `json:"value"`
	Outcome     string       `json:"outcome"`
	Scores      []TrialScore `json:"scores"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Recorder stores evaluation records
type Recorder interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, bool, error)
	List(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// DefaultListLimit is used when List is called with limit <= 0
const DefaultListLimit = 50

// prepare fills the ID and creation time of a record about to be saved
func prepare(rec *Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return nil
}

func clone(rec *Record) *Record {
	c := *rec
	c.Scores = append([]TrialScore(nil), rec.Scores...)
	return &c
}

// Open creates the recorder selected by the storage configuration
func Open(ctx context.Context, cfg config.Storage) (Recorder, error) {
	switch cfg.Driver {
	case "", config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageSQLite:
		s := NewSQLiteStore(cfg.Path)
		if err := s.Init(ctx); err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.Path, err)
		}
		return s, nil
	default:
		return nil, &config.ConfigurationError{Err: fmt.Errorf("unknown storage driver %q", cfg.Driver)}
	}
}
