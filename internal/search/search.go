// Package search finds a switch configuration from which a candidate model
// can be initialised.
package search

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/converter-eval/internal/model"
)

// ErrNoInitialState is returned when every switch configuration violates causality.
var ErrNoInitialState = errors.New("no initial state found")

// maxSwitches bounds the enumeration to what a SwitchConfiguration can address.
const maxSwitches = 63

// FindInitialState tries configurations 0 .. 2^n-1 in ascending order and
// returns the first one the model initialises without a causality
// violation. Any other initialisation error aborts the search.
func FindInitialState(m model.Model, targets []float64) (model.SwitchConfiguration, error) {
	n := m.SwitchCount()
	if n < 0 || n > maxSwitches {
		return 0, fmt.Errorf("cannot enumerate %d switches", n)
	}

	limit := uint64(1) << uint(n)
	for c := uint64(0); c < limit; c++ {
		cfg := model.SwitchConfiguration(c)
		err := m.Initialize(cfg, targets)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, model.ErrCausalityViolation) {
			return 0, fmt.Errorf("initialize configuration %d: %w", c, err)
		}
	}
	return 0, fmt.Errorf("%d configurations tried: %w", limit, ErrNoInitialState)
}

// Establish runs FindInitialState and applies the fallback policy. In
// relaxed mode a failed search switches the model to differential-causality
// tolerant solving, re-seeds the controller with configuration 0 and returns
// it with relaxed set. A causality violation on that re-seed is ignored.
func Establish(m model.Model, targets []float64, relaxedMode bool) (cfg model.SwitchConfiguration, relaxed bool, err error) {
	cfg, err = FindInitialState(m, targets)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, ErrNoInitialState) || !relaxedMode {
		return 0, false, err
	}
	m.SetDifferentialCausalitySupport(true)
	if err := m.Initialize(0, targets); err != nil && !errors.Is(err, model.ErrCausalityViolation) {
		return 0, true, fmt.Errorf("initialize configuration 0 with differential causality: %w", err)
	}
	return 0, true, nil
}
