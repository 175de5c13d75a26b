// Package modeltest provides a scriptable model.Model for tests.
package modeltest

import (
	"errors"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/converter-eval/internal/model"
	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
)

// OutputFunc computes the outputs at time t from the current targets and
// circuit parameters. It must return one value per tracked output.
type OutputFunc func(t float64, targets, params []float64) []float64

// TrackTargets is the default OutputFunc: every output equals its target.
func TrackTargets(_ float64, targets, _ []float64) []float64 {
	return append([]float64(nil), targets...)
}

// Fake is an in-memory model whose validity oracle and outputs are scripted.
type Fake struct {
	Switches   int
	NumOutputs int
	Holder     *model.ParameterHolder

	// Valid decides which configurations initialise. Nil accepts all.
	Valid func(model.SwitchConfiguration) bool
	// Output drives the logged outputs. Nil tracks the targets.
	Output OutputFunc

	SimulateErr   error
	PanicMessage  string
	InitializeErr error
	SimplifyErr   error

	// Recorded interactions
	Tried             []model.SwitchConfiguration
	Initialized       *model.SwitchConfiguration
	DiffCausality     []bool
	StateMatrixClears int
	Resets            int
	SimulateCalls     []float64
	Simplified        bool

	targets []float64
	time    float64
	log     *simlog.Log
}

// New creates a fake with n switches tracking numOutputs outputs
func New(switches, numOutputs int, holder *model.ParameterHolder) *Fake {
	return &Fake{
		Switches:   switches,
		NumOutputs: numOutputs,
		Holder:     holder,
		log:        simlog.New(numOutputs),
	}
}

func (f *Fake) SwitchCount() int { return f.Switches }

func (f *Fake) Initialize(cfg model.SwitchConfiguration, targets []float64) error {
	f.Tried = append(f.Tried, cfg)
	if f.InitializeErr != nil {
		return f.InitializeErr
	}
	if f.Valid != nil && !f.Valid(cfg) {
		return fmt.Errorf("configuration %d: %w", cfg, model.ErrCausalityViolation)
	}
	c := cfg
	f.Initialized = &c
	f.targets = append([]float64(nil), targets...)
	return nil
}

func (f *Fake) SetTargets(targets []float64) error {
	if len(targets) != f.NumOutputs {
		return fmt.Errorf("expected %d targets, got %d", f.NumOutputs, len(targets))
	}
	f.targets = append([]float64(nil), targets...)
	return nil
}

func (f *Fake) Reset() error {
	f.Resets++
	f.time = 0
	return nil
}

func (f *Fake) Simulate(toTime, step float64) error {
	f.SimulateCalls = append(f.SimulateCalls, toTime)
	if f.PanicMessage != "" {
		panic(f.PanicMessage)
	}
	if f.SimulateErr != nil {
		return f.SimulateErr
	}
	if step <= 0 {
		return errors.New("step must be positive")
	}

	if f.log.Len() == 0 {
		if err := f.record(f.time); err != nil {
			return err
		}
	}
	start := f.time
	steps := int(math.Round((toTime - start) / step))
	for i := 1; i <= steps; i++ {
		f.time = start + float64(i)*step
		if err := f.record(f.time); err != nil {
			return err
		}
	}
	f.time = toTime
	return nil
}

func (f *Fake) record(t float64) error {
	var params []float64
	if f.Holder != nil {
		params = f.Holder.Values()
	}
	out := f.Output
	if out == nil {
		out = TrackTargets
	}
	source := 0.0
	if len(params) > 0 {
		source = params[0]
	}
	state := 0.0
	if f.Initialized != nil {
		state = float64(*f.Initialized)
	}
	return f.log.Append(simlog.Sample{
		Time:    t,
		Outputs: out(t, f.targets, params),
		Targets: append([]float64(nil), f.targets...),
		State:   state,
		Source:  source,
	})
}

func (f *Fake) SetDifferentialCausalitySupport(enabled bool) {
	f.DiffCausality = append(f.DiffCausality, enabled)
}

func (f *Fake) ClearStateMatrix() { f.StateMatrixClears++ }

func (f *Fake) Log() *simlog.Log { return f.log }

func (f *Fake) Clone() model.Model {
	c := *f
	c.log = f.log.Clone()
	c.Tried = append([]model.SwitchConfiguration(nil), f.Tried...)
	c.DiffCausality = append([]bool(nil), f.DiffCausality...)
	c.SimulateCalls = append([]float64(nil), f.SimulateCalls...)
	return &c
}

func (f *Fake) Simplify() error {
	if f.SimplifyErr != nil {
		return f.SimplifyErr
	}
	f.Simplified = true
	return nil
}

func (f *Fake) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("fake(switches=%d, outputs=%d)", f.Switches, f.NumOutputs)), nil
}

var _ model.Model = (*Fake)(nil)
