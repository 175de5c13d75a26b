package evaluation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Dump is the diagnostic document written when a candidate fails at runtime
type Dump struct {
	CandidateID string    `yaml:"candidate_id"`
	Generation  int       `yaml:"generation"`
	Step        string    `yaml:"step"`
	Error       string    `yaml:"error"`
	Model       string    `yaml:"model,omitempty"`
	Genome      string    `yaml:"genome,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// Dumper persists diagnostic dumps and returns where each one went
type Dumper interface {
	Dump(ctx context.Context, d *Dump) (string, error)
}

// FileDumper writes each dump to <dir>/candidate_bug_<generation>_<n>.yaml,
// n counting the dumps written by this dumper. Safe for concurrent use.
type FileDumper struct {
	dir     string
	counter atomic.Uint64
}

func NewFileDumper(dir string) *FileDumper {
	return &FileDumper{dir: dir}
}

func (f *FileDumper) Dump(ctx context.Context, d *Dump) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := f.counter.Add(1) - 1
	path := filepath.Join(f.dir, fmt.Sprintf("candidate_bug_%d_%d.yaml", d.Generation, n))

	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal dump: %w", err)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create dump dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write dump: %w", err)
	}
	return path, nil
}

// Count returns how many dumps have been requested
func (f *FileDumper) Count() uint64 {
	return f.counter.Load()
}
