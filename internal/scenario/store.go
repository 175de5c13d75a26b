// Package scenario holds the immutable list of target-tracking test cases and
// the generation schedule that activates them.
package scenario

import (
	"fmt"

	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
)

// Breakpoint applies new targets and circuit parameters at Time
type Breakpoint struct {
	Time       float64
	Targets    []float64
	Parameters []float64
}

// Scenario is an ordered list of breakpoints starting at t = 0
type Scenario struct {
	Index       int
	Name        string
	Breakpoints []Breakpoint
}

// End returns the time the simulation of breakpoint i runs up to: the next
// breakpoint's time, or duration for the last one.
func (s *Scenario) End(i int, duration float64) float64 {
	if i+1 < len(s.Breakpoints) {
		return s.Breakpoints[i+1].Time
	}
	return duration
}

// Store is the ordered scenario collection. It is immutable once built and
// safe to share between concurrent evaluations.
type Store struct {
	scenarios []Scenario
	steps     []float64
	always    bool
}

// NewStore builds a store from validated config sections
func NewStore(specs []config.ScenarioSpec, sim config.Simulation, schedule config.Schedule) (*Store, error) {
	if err := config.ValidateScenarios(specs, sim); err != nil {
		return nil, err
	}
	if err := config.ValidateSchedule(schedule, len(specs)); err != nil {
		return nil, err
	}

	s := &Store{
		scenarios: make([]Scenario, len(specs)),
		always:    schedule.AlwaysActive(),
		steps:     append([]float64(nil), schedule.GenerationSteps...),
	}
	for g, spec := range specs {
		name := spec.Name
		if name == "" {
			name = fmt.Sprintf("testcase_%d", g)
		}
		sc := Scenario{Index: g, Name: name, Breakpoints: make([]Breakpoint, len(spec.Breakpoints))}
		for i, bp := range spec.Breakpoints {
			sc.Breakpoints[i] = Breakpoint{
				Time:       bp.Time,
				Targets:    append([]float64(nil), bp.Targets...),
				Parameters: append([]float64(nil), bp.Parameters...),
			}
		}
		s.scenarios[g] = sc
	}
	return s, nil
}

// FromConfig builds a store from a full evaluator configuration
func FromConfig(cfg *config.EvalConfig) (*Store, error) {
	return NewStore(cfg.Scenarios, cfg.Simulation, cfg.Schedule)
}

// Len returns the number of scenarios
func (s *Store) Len() int {
	return len(s.scenarios)
}

// Scenario returns scenario g. Callers must not modify the returned slices.
func (s *Store) Scenario(g int) *Scenario {
	return &s.scenarios[g]
}

// IsActive reports whether scenario g is part of the evaluation at generation
func (s *Store) IsActive(g, generation int) bool {
	if s.always {
		return true
	}
	return float64(generation) >= s.steps[g]
}

// Active returns the indices of the scenarios active at generation, from the
// last registered to the first. Evaluations process them in this order.
func (s *Store) Active(generation int) []int {
	out := make([]int, 0, len(s.scenarios))
	for g := len(s.scenarios) - 1; g >= 0; g-- {
		if s.IsActive(g, generation) {
			out = append(out, g)
		}
	}
	return out
}
