// Package driver steps a candidate model through the breakpoints of one
// scenario and collects its simulation log.
package driver

import (
	"fmt"
	"log/slog"

	"github.com/GoSim-25-26J-441/converter-eval/internal/model"
	"github.com/GoSim-25-26J-441/converter-eval/internal/scenario"
	"github.com/GoSim-25-26J-441/converter-eval/internal/search"
	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/logger"
)

// Driver simulates scenarios with fixed simulation settings
type Driver struct {
	sim         config.Simulation
	relaxedMode bool
	logger      *slog.Logger
}

// Result describes one driven scenario
type Result struct {
	// InitialState is the switch configuration found at the first breakpoint
	InitialState model.SwitchConfiguration
	// Relaxed is set when no configuration was valid and differential
	// causality was enabled to proceed
	Relaxed bool
	// Source is the source value (parameter 0) of the last applied breakpoint
	Source float64
	// Log is the model's simulation log after the last breakpoint
	Log *simlog.Log
}

// New creates a driver. relaxedMode selects the causality fallback.
func New(sim config.Simulation, relaxedMode bool) *Driver {
	return &Driver{
		sim:         sim,
		relaxedMode: relaxedMode,
		logger:      logger.Default,
	}
}

// SetLogger sets the driver's logger
func (d *Driver) SetLogger(l *slog.Logger) {
	d.logger = l
}

// SyntheticTarget derives the extra target the controller tracks from the
// output targets: sum_k targets[k]^2 / (params[0] * params[k+1]). With the
// source voltage as parameter 0 and the loads after it, this is the input
// current that delivers the target output powers.
func SyntheticTarget(targets, params []float64) float64 {
	total := 0.0
	for k, t := range targets {
		total += t * t / (params[0] * params[k+1])
	}
	return total
}

// ControlTargets returns the breakpoint's targets with the synthetic target appended
func ControlTargets(bp scenario.Breakpoint) []float64 {
	out := make([]float64, 0, len(bp.Targets)+1)
	out = append(out, bp.Targets...)
	return append(out, SyntheticTarget(bp.Targets, bp.Parameters))
}

// Advance simulates the model from from to to with a fixed step and returns
// the running log.
func Advance(m model.Model, from, to, step float64) (*simlog.Log, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %g", step)
	}
	if to < from {
		return nil, fmt.Errorf("cannot simulate backwards from %g to %g", from, to)
	}
	if err := m.Simulate(to, step); err != nil {
		return nil, fmt.Errorf("simulate %g -> %g: %w", from, to, err)
	}
	return m.Log(), nil
}

// Run drives m through every breakpoint of sc. Breakpoint validation
// failures are *config.ConfigurationError. In strict mode a failed
// initial-state search returns an error wrapping search.ErrNoInitialState
// before anything is simulated.
func (d *Driver) Run(m model.Model, holder *model.ParameterHolder, sc *scenario.Scenario) (*Result, error) {
	if holder == nil {
		return nil, &config.ConfigurationError{Err: fmt.Errorf("parameter holder is required")}
	}

	res := &Result{}
	for i, bp := range sc.Breakpoints {
		if err := d.validate(bp, holder); err != nil {
			return nil, &config.ConfigurationError{Err: fmt.Errorf("scenario %d, breakpoint %d: %w", sc.Index, i, err)}
		}

		if len(bp.Parameters) > 0 {
			m.ClearStateMatrix()
		}
		if err := holder.Assign(bp.Parameters); err != nil {
			return nil, &config.ConfigurationError{Err: err}
		}
		res.Source = bp.Parameters[0]

		targets := ControlTargets(bp)
		if err := m.SetTargets(targets); err != nil {
			return nil, fmt.Errorf("set targets at breakpoint %d: %w", i, err)
		}

		if i == 0 {
			cfg, relaxed, err := search.Establish(m, targets, d.relaxedMode)
			if err != nil {
				return nil, fmt.Errorf("scenario %d: %w", sc.Index, err)
			}
			res.InitialState, res.Relaxed = cfg, relaxed
			if relaxed {
				d.logger.Debug("no causal initial state, using differential causality", "scenario", sc.Index)
			}

			m.Log().Clear()
			if err := m.Reset(); err != nil {
				return nil, fmt.Errorf("reset model: %w", err)
			}
		}

		if _, err := Advance(m, bp.Time, sc.End(i, d.sim.Duration), d.sim.TimeStep); err != nil {
			return nil, fmt.Errorf("scenario %d, breakpoint %d: %w", sc.Index, i, err)
		}
	}

	res.Log = m.Log()
	d.logger.Debug("scenario simulated",
		"scenario", sc.Index,
		"initial_state", uint64(res.InitialState),
		"samples", res.Log.Len())
	return res, nil
}

func (d *Driver) validate(bp scenario.Breakpoint, holder *model.ParameterHolder) error {
	if err := config.ValidateBreakpoint(config.BreakpointSpec{
		Time:       bp.Time,
		Targets:    bp.Targets,
		Parameters: bp.Parameters,
	}, d.sim); err != nil {
		return err
	}
	if holder.Size() != len(bp.Parameters) {
		return fmt.Errorf("parameter holder has %d slots, breakpoint has %d parameters", holder.Size(), len(bp.Parameters))
	}
	return nil
}
