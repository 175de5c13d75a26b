// Package model defines the collaborators the evaluator drives: the candidate
// switched-circuit model and the shared parameter holder. Their physics live
// outside this module.
package model

import (
	"errors"

	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
)

// ErrCausalityViolation is returned by Model.Initialize when a switch
// configuration has no physically consistent initial solution.
var ErrCausalityViolation = errors.New("causality violation")

// SwitchConfiguration is a bitset over the model's switches, bit i being
// switch i. Valid values are in [0, 2^n).
type SwitchConfiguration uint64

// On reports whether switch i is closed in the configuration
func (c SwitchConfiguration) On(i int) bool {
	return c&(1<<uint(i)) != 0
}

// Model is a candidate switched dynamical system. Implementations are not
// safe for concurrent use; each evaluation owns its model.
type Model interface {
	// SwitchCount returns the number of discrete switches
	SwitchCount() int
	// Initialize seeds the controller with a switch configuration and the
	// current target vector. It returns an error wrapping
	// ErrCausalityViolation when the configuration is not solvable.
	Initialize(cfg SwitchConfiguration, targets []float64) error
	// SetTargets hands a new target vector to the controller
	SetTargets(targets []float64) error
	// Reset returns the model state to t = 0
	Reset() error
	// Simulate advances the model to toTime with a fixed step, appending to Log
	Simulate(toTime, step float64) error
	// SetDifferentialCausalitySupport toggles tolerant solving
	SetDifferentialCausalitySupport(enabled bool)
	// ClearStateMatrix drops cached state equations after a parameter change
	ClearStateMatrix()
	// Log returns the running simulation log
	Log() *simlog.Log
	// Clone returns an independent copy of the model
	Clone() Model
	// Simplify canonicalises the model in place
	Simplify() error
	// MarshalText serialises the model for diagnostic dumps
	MarshalText() ([]byte, error)
}
