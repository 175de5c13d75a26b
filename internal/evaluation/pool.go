package evaluation

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoSim-25-26J-441/converter-eval/internal/metrics"
	"github.com/GoSim-25-26J-441/converter-eval/internal/model"
	"github.com/GoSim-25-26J-441/converter-eval/internal/store"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
)

// CandidateFactory binds a candidate to the parameter holder of the worker
// that evaluates it
type CandidateFactory func(holder *model.ParameterHolder) Candidate

// Pool evaluates a population on a fixed set of workers. Each worker owns an
// Evaluator and a parameter holder; the dumper, recorder and metrics are
// shared.
type Pool struct {
	workers chan *Evaluator
	size    int
}

// NewPool creates size workers from cfg. size below 1 is treated as 1.
func NewPool(cfg config.EvalConfig, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{workers: make(chan *Evaluator, size), size: size}
	var dumper Dumper
	for i := 0; i < size; i++ {
		e, err := New(cfg, model.NewParameterHolder(cfg.Simulation.NumParameters))
		if err != nil {
			return nil, err
		}
		// one dumper keeps dump file numbering unique across workers
		if dumper == nil {
			dumper = e.dumper
		}
		e.dumper = dumper
		p.workers <- e
	}
	return p, nil
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Configure applies f to every worker. It must not run concurrently with
// EvaluateAll.
func (p *Pool) Configure(f func(*Evaluator)) {
	for i := 0; i < p.size; i++ {
		e := <-p.workers
		f(e)
		p.workers <- e
	}
}

// WithDumper shares d between all workers
func (p *Pool) WithDumper(d Dumper) *Pool {
	p.Configure(func(e *Evaluator) { e.WithDumper(d) })
	return p
}

// WithRecorder shares r between all workers
func (p *Pool) WithRecorder(r store.Recorder) *Pool {
	p.Configure(func(e *Evaluator) { e.WithRecorder(r) })
	return p
}

// WithMetrics shares c between all workers
func (p *Pool) WithMetrics(c *metrics.Collector) *Pool {
	p.Configure(func(e *Evaluator) { e.WithMetrics(c) })
	return p
}

// EvaluateAll evaluates every candidate at generation. Results keep the
// order of candidates. A failed evaluation leaves a nil entry; the first
// error is returned alongside the partial results.
func (p *Pool) EvaluateAll(ctx context.Context, candidates []CandidateFactory, generation int) ([]*Fitness, error) {
	results := make([]*Fitness, len(candidates))
	errs := make([]error, len(candidates))

	var wg sync.WaitGroup
	for i, factory := range candidates {
		var e *Evaluator
		select {
		case e = <-p.workers:
		case <-ctx.Done():
			wg.Wait()
			return results, ctx.Err()
		}

		wg.Add(1)
		go func(idx int, factory CandidateFactory, e *Evaluator) {
			defer wg.Done()
			defer func() { p.workers <- e }()

			if factory == nil {
				errs[idx] = &config.ConfigurationError{Err: fmt.Errorf("candidate %d: factory is nil", idx)}
				return
			}
			results[idx], errs[idx] = e.Evaluate(ctx, factory(e.holder), generation)
		}(i, factory, e)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return results, fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	return results, nil
}
