// Package scoring reduces a simulation log to a fitness value: relative
// tracking error per output channel, integrated over time, inverted, and
// penalised for degenerate solutions.
package scoring

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/utils"
)

// DefaultZeroTargetError is the per-sample relative error used when the
// target is exactly 0 and the output is not.
const DefaultZeroTargetError = 1e6

// ErrorReport is the result of integrating a log
type ErrorReport struct {
	// Integrated is the trapezoid-integrated relative error of each output
	Integrated []float64
	// ZeroOutput[k] is set when output k is 0 on every sample
	ZeroOutput []bool
	// SourceOutput[k] is set when output k equals the source value on every sample
	SourceOutput []bool
	// SameOutput is set when Output_0 equals Output_1 on every sample
	SameOutput bool
}

// RelativeError returns |output - target| / |target|. A zero target yields 0
// when the output is also 0 and zeroTargetError otherwise. Non-finite results
// are replaced by zeroTargetError so they cannot poison the integral.
func RelativeError(output, target, zeroTargetError float64) float64 {
	if target == 0 {
		if output == 0 {
			return 0
		}
		return zeroTargetError
	}
	e := math.Abs(output-target) / math.Abs(target)
	if !utils.IsFinite(e) {
		return zeroTargetError
	}
	return e
}

// IntegrateError scans the first numOutputs channels of the log. source is the
// circuit's source value the outputs are compared against for the
// pass-through check. zeroTargetError <= 0 selects DefaultZeroTargetError.
func IntegrateError(l *simlog.Log, numOutputs int, source, zeroTargetError float64) (*ErrorReport, error) {
	if l == nil {
		return nil, fmt.Errorf("simulation log is nil")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if numOutputs < 1 || numOutputs > l.NumOutputs() {
		return nil, fmt.Errorf("cannot score %d outputs from a log with %d", numOutputs, l.NumOutputs())
	}
	if zeroTargetError <= 0 {
		zeroTargetError = DefaultZeroTargetError
	}

	n := l.Len()
	report := &ErrorReport{
		Integrated:   make([]float64, numOutputs),
		ZeroOutput:   make([]bool, numOutputs),
		SourceOutput: make([]bool, numOutputs),
		// a single output has no partner to duplicate
		SameOutput: numOutputs > 1,
	}

	errs := make([]float64, n)
	for k := 0; k < numOutputs; k++ {
		out := l.Outputs[k]
		target := l.Targets[k]
		zero, src := true, true
		for i := 0; i < n; i++ {
			errs[i] = RelativeError(out[i], target[i], zeroTargetError)
			if out[i] != 0 {
				zero = false
			}
			if out[i] != source {
				src = false
			}
			if k == 0 && report.SameOutput && out[i] != l.Outputs[1][i] {
				report.SameOutput = false
			}
		}
		report.ZeroOutput[k] = zero
		report.SourceOutput[k] = src
		report.Integrated[k] = utils.Trapezoid(l.Time, errs)
	}
	return report, nil
}
