package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/converter-eval/internal/driver"
	"github.com/GoSim-25-26J-441/converter-eval/internal/metrics"
	"github.com/GoSim-25-26J-441/converter-eval/internal/model"
	"github.com/GoSim-25-26J-441/converter-eval/internal/scenario"
	"github.com/GoSim-25-26J-441/converter-eval/internal/scoring"
	"github.com/GoSim-25-26J-441/converter-eval/internal/search"
	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
	"github.com/GoSim-25-26J-441/converter-eval/internal/store"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/logger"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/utils"
)

// Evaluation stages reported by RuntimeFailure.Step
const (
	StepBuild    = "build"
	StepSimplify = "simplify"
	StepSimulate = "simulate"
	StepScore    = "score"
)

// Evaluator computes candidate fitness. Evaluations through one Evaluator
// must not overlap: the parameter holder is written during every call.
// Hosts evaluating in parallel use a Pool, or create one Evaluator (and
// holder) per worker and share a Dumper, Recorder and metrics Collector.
type Evaluator struct {
	cfg       config.EvalConfig
	scenarios *scenario.Store
	holder    *model.ParameterHolder
	driver    *driver.Driver
	scoring   scoring.Options

	logger   *slog.Logger
	dumper   Dumper
	recorder store.Recorder
	metrics  *metrics.Collector
}

// New creates an evaluator and its scenario store from cfg. An invalid
// configuration, a nil holder or a holder not sized for the configured
// parameters is a *config.ConfigurationError.
func New(cfg config.EvalConfig, holder *model.ParameterHolder) (*Evaluator, error) {
	if err := config.ValidateEvalConfig(&cfg); err != nil {
		return nil, err
	}
	if holder == nil {
		return nil, &config.ConfigurationError{Err: errors.New("parameter holder is required")}
	}
	if holder.Size() != cfg.Simulation.NumParameters {
		return nil, &config.ConfigurationError{Err: fmt.Errorf("parameter holder has %d slots, configuration expects %d",
			holder.Size(), cfg.Simulation.NumParameters)}
	}
	scenarios, err := scenario.FromConfig(&cfg)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		cfg:       cfg,
		scenarios: scenarios,
		holder:    holder,
		driver:    driver.New(cfg.Simulation, cfg.Causality.Mode == config.CausalityRelaxed),
		scoring: scoring.Options{
			PenaltyFactor:   cfg.Scoring.PenaltyFactor,
			ZeroTargetError: cfg.Scoring.ZeroTargetError,
		},
		logger: logger.Default,
		dumper: NewFileDumper(cfg.Diagnostics.DumpDir),
	}
	e.driver.SetLogger(e.logger)
	return e, nil
}

// WithLogger sets the evaluator's logger
func (e *Evaluator) WithLogger(l *slog.Logger) *Evaluator {
	if l != nil {
		e.logger = l
		e.driver.SetLogger(l)
	}
	return e
}

// WithDumper replaces the file dumper built from diagnostics.dump_dir
func (e *Evaluator) WithDumper(d Dumper) *Evaluator {
	e.dumper = d
	return e
}

// WithRecorder stores a record of every finished evaluation
func (e *Evaluator) WithRecorder(r store.Recorder) *Evaluator {
	e.recorder = r
	return e
}

// WithMetrics reports evaluations to c
func (e *Evaluator) WithMetrics(c *metrics.Collector) *Evaluator {
	e.metrics = c
	return e
}

// Config returns the evaluator's configuration
func (e *Evaluator) Config() config.EvalConfig {
	return e.cfg
}

// Scenarios returns the evaluator's scenario store
func (e *Evaluator) Scenarios() *scenario.Store {
	return e.scenarios
}

// Evaluate scores candidate c at generation.
//
// Active scenarios run from the last to the first; each contributes one
// TrialResult and the fitness is the mean of their scores. Fitness is 0
// when the candidate has too many switches, when a scenario has no causal
// initial state in strict mode, when the model reports a causality violation
// while simulating, and when the model fails at runtime. Only a runtime
// failure is dumped and, with diagnostics.fail_hard, returned as a
// *RuntimeFailure instead. Configuration problems are returned as
// *config.ConfigurationError. ctx bounds the dump and record I/O only; the
// simulation itself is not cancellable.
func (e *Evaluator) Evaluate(ctx context.Context, c Candidate, generation int) (*Fitness, error) {
	if c == nil {
		return nil, &config.ConfigurationError{Err: errors.New("candidate is nil")}
	}

	start := time.Now()
	log := logger.ForCandidate(e.logger, c.ID(), generation)
	e.holder.Clear()

	fit := &Fitness{CandidateID: c.ID(), Generation: generation}
	step, err := e.run(fit, c, generation, log)

	var errText string
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}

		fit.Value = 0
		fit.Outcome = metrics.OutcomeRuntimeFailure
		failure := &RuntimeFailure{CandidateID: c.ID(), Generation: generation, Step: step, Err: err}
		failure.DumpPath = e.dump(ctx, fit, c, failure, log)
		e.metrics.IncRuntimeFailure()
		errText = failure.Error()
		log.Error("candidate evaluation failed", "step", step, "error", err, "dump", failure.DumpPath)

		if e.cfg.Diagnostics.FailHard {
			e.finish(ctx, fit, start, errText, log)
			return nil, failure
		}
	}

	e.finish(ctx, fit, start, errText, log)
	return fit, nil
}

// run performs the evaluation proper and fills fit. On error it returns the
// failing step. Panics from the model are recovered as *PanicError.
func (e *Evaluator) run(fit *Fitness, c Candidate, generation int, log *slog.Logger) (step string, err error) {
	step = StepBuild
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	m, err := c.Build()
	if err != nil {
		return step, err
	}
	if m == nil {
		return step, errors.New("candidate built a nil model")
	}

	step = StepSimplify
	fit.Model = m.Clone()
	if err := m.Simplify(); err != nil {
		return step, err
	}
	fit.Simplified = m

	if limit := e.cfg.Limits.MaxSwitches; limit != config.UnlimitedSwitches && m.SwitchCount() > limit {
		log.Debug("switch limit exceeded", "switches", m.SwitchCount(), "max_switches", limit)
		fit.Outcome = metrics.OutcomeSwitchLimit
		return "", nil
	}

	if e.cfg.Causality.Mode == config.CausalityStrict {
		m.SetDifferentialCausalitySupport(false)
	}

	numOutputs := e.cfg.Simulation.NumOutputs
	for _, g := range e.scenarios.Active(generation) {
		sc := e.scenarios.Scenario(g)

		step = StepSimulate
		res, err := e.driver.Run(m, e.holder, sc)
		if err != nil {
			if errors.Is(err, search.ErrNoInitialState) {
				log.Debug("no causal initial state", "scenario", g)
				e.metrics.IncCausalityFailure()
				fit.Value = 0
				fit.Outcome = metrics.OutcomeNoInitialState
				return "", nil
			}
			if errors.Is(err, model.ErrCausalityViolation) {
				log.Debug("causality violation during simulation", "scenario", g, "error", err)
				e.metrics.IncCausalityFailure()
				fit.Value = 0
				fit.Outcome = metrics.OutcomeCausalityViolation
				return "", nil
			}
			return step, err
		}

		step = StepScore
		score, report, err := scoring.ScoreLog(res.Log, numOutputs, res.Source, e.scoring)
		if err != nil {
			return step, fmt.Errorf("scenario %d: %w", g, err)
		}

		trial := TrialResult{
			Trial:        len(fit.Results),
			Scenario:     g,
			Name:         sc.Name,
			Score:        score,
			Report:       report,
			InitialState: res.InitialState,
			Relaxed:      res.Relaxed,
			Log:          res.Log.Clone(),
		}
		fit.Results = append(fit.Results, trial)
		e.metrics.ObserveScenario(score)
		e.writeLog(trial, log)
		log.Debug("scenario scored", "scenario", g, "trial", trial.Trial, "score", score)
	}

	fit.Value = utils.Mean(fit.Scores())
	fit.Outcome = metrics.OutcomeScored
	return "", nil
}

func (e *Evaluator) writeLog(trial TrialResult, log *slog.Logger) {
	dir := e.cfg.Diagnostics.LogDir
	if dir == "" {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("testcase_%d.csv", trial.Scenario))
	if err := simlog.WriteCSVFile(path, trial.Log); err != nil {
		log.Warn("failed to write scenario log", "path", path, "error", err)
	}
}

func (e *Evaluator) dump(ctx context.Context, fit *Fitness, c Candidate, failure *RuntimeFailure, log *slog.Logger) string {
	if e.dumper == nil {
		return ""
	}
	d := &Dump{
		CandidateID: failure.CandidateID,
		Generation:  failure.Generation,
		Step:        failure.Step,
		Error:       failure.Err.Error(),
		CreatedAt:   time.Now().UTC(),
	}
	if m := dumpModel(fit); m != nil {
		if text, err := safeMarshal(m.MarshalText); err == nil {
			d.Model = string(text)
		}
	}
	if genome, err := safeMarshal(c.MarshalGenome); err == nil {
		d.Genome = string(genome)
	}

	path, err := e.dumper.Dump(ctx, d)
	if err != nil {
		log.Warn("failed to write diagnostic dump", "error", err)
		return ""
	}
	return path
}

// dumpModel picks the model that was being simulated, falling back to the
// as-produced copy.
func dumpModel(fit *Fitness) model.Model {
	if fit.Simplified != nil {
		return fit.Simplified
	}
	return fit.Model
}

// safeMarshal shields the dump from a serialiser that panics on a broken model
func safeMarshal(f func() ([]byte, error)) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return f()
}

func (e *Evaluator) finish(ctx context.Context, fit *Fitness, start time.Time, errText string, log *slog.Logger) {
	elapsed := time.Since(start)
	e.metrics.ObserveEvaluation(fit.Outcome, fit.Value, elapsed)
	log.Debug("candidate evaluated",
		"fitness", fit.Value,
		"outcome", fit.Outcome,
		"trials", len(fit.Results),
		"duration", elapsed)

	if e.recorder == nil {
		return
	}
	rec := &store.Record{
		CandidateID: fit.CandidateID,
		Generation:  fit.Generation,
		Value:       fit.Value,
		Outcome:     fit.Outcome,
		Error:       errText,
		Scores:      make([]store.TrialScore, len(fit.Results)),
	}
	for i, r := range fit.Results {
		rec.Scores[i] = store.TrialScore{Trial: r.Trial, Scenario: r.Scenario, Score: r.Score}
	}
	if err := e.recorder.Save(ctx, rec); err != nil {
		log.Warn("failed to record evaluation", "error", err)
	}
}
