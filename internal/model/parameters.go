package model

import (
	"fmt"
	"sync"
)

// ParameterHolder is the shared parameter set a model reads its circuit
// values from (source voltage, loads, ...). The host owns it; the evaluator
// clears it at the start of every evaluation and writes each breakpoint's
// parameters into it.
type ParameterHolder struct {
	mu     sync.RWMutex
	values []float64
}

// NewParameterHolder creates a holder with size zeroed slots
func NewParameterHolder(size int) *ParameterHolder {
	return &ParameterHolder{values: make([]float64, size)}
}

// Clear zeroes every slot
func (h *ParameterHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.values {
		h.values[i] = 0
	}
}

// Size returns the number of slots
func (h *ParameterHolder) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.values)
}

// SetValue writes slot i
func (h *ParameterHolder) SetValue(i int, v float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.values) {
		return fmt.Errorf("parameter index %d out of range [0, %d)", i, len(h.values))
	}
	h.values[i] = v
	return nil
}

// Value reads slot i
func (h *ParameterHolder) Value(i int) (float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i < 0 || i >= len(h.values) {
		return 0, fmt.Errorf("parameter index %d out of range [0, %d)", i, len(h.values))
	}
	return h.values[i], nil
}

// Values returns a copy of every slot
func (h *ParameterHolder) Values() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]float64(nil), h.values...)
}

// Assign writes params into the leading slots. The holder must be exactly
// as large as params.
func (h *ParameterHolder) Assign(params []float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(params) != len(h.values) {
		return fmt.Errorf("parameter holder has %d slots, got %d values", len(h.values), len(params))
	}
	copy(h.values, params)
	return nil
}
