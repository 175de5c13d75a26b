package evald

import (
	"context"

	"github.com/GoSim-25-26J-441/converter-eval/internal/store"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
)

// OpenRecorder opens the record store the daemon serves. The daemon runs no
// evaluations of its own, so records only appear through a sqlite file
// shared with in-process evaluators. A memory store would stay empty for the
// daemon's lifetime; for it OpenRecorder returns a nil Recorder and the
// evaluation routes answer 503.
func OpenRecorder(ctx context.Context, cfg config.Storage) (store.Recorder, error) {
	if cfg.Driver == "" || cfg.Driver == config.StorageMemory {
		return nil, nil
	}
	return store.Open(ctx, cfg)
}
