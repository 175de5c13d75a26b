package scoring

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/utils"
)

// MaxScore is awarded when the worst integrated error is 0 or too small for
// its reciprocal to be finite
const MaxScore = math.MaxFloat64

// Score turns an error report into a fitness scalar.
//
// The worst channel decides: score = 1/max(error), or MaxScore when that error
// is 0. If every output is identically zero the score is 0. Otherwise a
// non-zero score is multiplied by penaltyFactor when any output mirrors the
// source or Output_0 duplicates Output_1.
func Score(r *ErrorReport, penaltyFactor float64) float64 {
	if r == nil || len(r.Integrated) == 0 {
		return 0
	}

	worst := utils.MaxOf(r.Integrated)
	var score float64
	switch {
	case worst == 0:
		score = MaxScore
	case math.IsInf(worst, 1):
		score = 0
	default:
		// errors below 1/MaxFloat64 overflow the reciprocal
		score = 1 / worst
		if math.IsInf(score, 1) {
			score = MaxScore
		}
	}

	allZero := true
	for _, z := range r.ZeroOutput {
		if !z {
			allZero = false
			break
		}
	}
	if allZero {
		return 0
	}

	if score != 0 && r.Degenerate() {
		score *= penaltyFactor
	}
	if !utils.IsFinite(score) {
		return 0
	}
	return score
}

// Degenerate reports whether the penalty applies: an output passes the source
// through or the first two outputs are identical.
func (r *ErrorReport) Degenerate() bool {
	if r.SameOutput {
		return true
	}
	for _, s := range r.SourceOutput {
		if s {
			return true
		}
	}
	return false
}

// ScoreLog integrates and scores a log in one call
func ScoreLog(l *simlog.Log, numOutputs int, source float64, opts Options) (float64, *ErrorReport, error) {
	if err := opts.validate(); err != nil {
		return 0, nil, err
	}
	report, err := IntegrateError(l, numOutputs, source, opts.ZeroTargetError)
	if err != nil {
		return 0, nil, err
	}
	return Score(report, opts.PenaltyFactor), report, nil
}

// Options are the scoring knobs taken from the evaluator configuration
type Options struct {
	PenaltyFactor   float64
	ZeroTargetError float64
}

func (o Options) validate() error {
	if !(o.PenaltyFactor > 0) || o.PenaltyFactor > 1 {
		return fmt.Errorf("penalty factor must be in (0, 1], got %g", o.PenaltyFactor)
	}
	return nil
}
