package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "eval.db"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func recorders(t *testing.T) map[string]Recorder {
	return map[string]Recorder{
		"memory": NewMemoryStore(),
		"sqlite": newSQLite(t),
	}
}

func TestRecorderSaveAndGet(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := &Record{
				CandidateID: "cand-1",
				Generation:  7,
				Value:       math.MaxFloat64,
				Outcome:     "scored",
				Scores:      []TrialScore{{Trial: 0, Scenario: 1, Score: math.MaxFloat64}, {Trial: 1, Scenario: 0, Score: 2.5}},
			}
			if err := r.Save(ctx, rec); err != nil {
				t.Fatalf("Save error: %v", err)
			}
			if rec.ID == "" {
				t.Fatalf("expected generated record id")
			}
			if rec.CreatedAt.IsZero() {
				t.Fatalf("expected created_at to be set")
			}

			got, ok, err := r.Get(ctx, rec.ID)
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if got.CandidateID != "cand-1" || got.Generation != 7 || got.Value != math.MaxFloat64 {
				t.Fatalf("unexpected record %+v", got)
			}
			if len(got.Scores) != 2 || got.Scores[1].Score != 2.5 || got.Scores[0].Scenario != 1 {
				t.Fatalf("unexpected scores %+v", got.Scores)
			}
			if !got.CreatedAt.Equal(rec.CreatedAt) {
				t.Fatalf("created_at changed: %v vs %v", got.CreatedAt, rec.CreatedAt)
			}
		})
	}
}

func TestRecorderGetMissing(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := r.Get(context.Background(), "nope")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok {
				t.Fatalf("expected record to be missing")
			}
		})
	}
}

func TestRecorderDuplicate(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := r.Save(ctx, &Record{ID: "rec-1", Outcome: "scored"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			err := r.Save(ctx, &Record{ID: "rec-1", Outcome: "scored"})
			if !errors.Is(err, ErrRecordExists) {
				t.Fatalf("expected ErrRecordExists, got %v", err)
			}
		})
	}
}

func TestRecorderListNewestFirst(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < 10; i++ {
				rec := &Record{Generation: i, Outcome: "scored", CreatedAt: base.Add(time.Duration(i) * time.Second)}
				if err := r.Save(ctx, rec); err != nil {
					t.Fatalf("Save error: %v", err)
				}
			}

			recs, err := r.List(ctx, 3)
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			if len(recs) != 3 {
				t.Fatalf("expected 3 records, got %d", len(recs))
			}
			for i, rec := range recs {
				if rec.Generation != 9-i {
					t.Fatalf("record %d: expected generation %d, got %d", i, 9-i, rec.Generation)
				}
			}

			all, err := r.List(ctx, 0)
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			if len(all) != 10 {
				t.Fatalf("expected default limit to return all 10, got %d", len(all))
			}
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := &Record{ID: "a", Scores: []TrialScore{{Score: 1}}}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	rec.Scores[0].Score = 99

	got, _, _ := s.Get(ctx, "a")
	if got.Scores[0].Score != 1 {
		t.Fatalf("stored record aliased the caller's slice")
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	if err := s.Save(context.Background(), &Record{}); err == nil {
		t.Fatalf("expected error before Init")
	}
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	r, err := Open(ctx, config.Storage{Driver: config.StorageMemory})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := r.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", r)
	}

	r, err = Open(ctx, config.Storage{Driver: config.StorageSQLite, Path: filepath.Join(t.TempDir(), "e.db")})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer r.Close()
	if _, ok := r.(*SQLiteStore); !ok {
		t.Fatalf("expected *SQLiteStore, got %T", r)
	}

	_, err = Open(ctx, config.Storage{Driver: "redis"})
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
