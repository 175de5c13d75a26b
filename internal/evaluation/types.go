// Package evaluation scores candidate converter topologies: it drives each
// candidate's model through the active scenarios and reduces the logs to a
// single fitness value.
package evaluation

import (
	"github.com/GoSim-25-26J-441/converter-eval/internal/model"
	"github.com/GoSim-25-26J-441/converter-eval/internal/scoring"
	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
)

// Candidate is one individual of the host's population
type Candidate interface {
	// ID identifies the candidate in logs, dumps and records
	ID() string
	// Build constructs the candidate's model, bound to the evaluator's
	// parameter holder
	Build() (model.Model, error)
	// MarshalGenome serialises the genome for diagnostic dumps
	MarshalGenome() ([]byte, error)
}

// TrialResult is the outcome of one activated scenario. Trial counts
// activated scenarios only, in evaluation order.
type TrialResult struct {
	Trial        int
	Scenario     int
	Name         string
	Score        float64
	Report       *scoring.ErrorReport
	InitialState model.SwitchConfiguration
	Relaxed      bool
	Log          *simlog.Log
}

// Fitness is the result of evaluating one candidate
type Fitness struct {
	CandidateID string
	Generation  int
	// Value is the mean trial score, or 0 when the evaluation was cut short
	Value   float64
	Outcome string
	Results []TrialResult
	// Model is a copy of the model as the candidate produced it
	Model model.Model
	// Simplified is the canonicalised model that was simulated
	Simplified model.Model
}

// Scores returns the trial scores in evaluation order
func (f *Fitness) Scores() []float64 {
	out := make([]float64, len(f.Results))
	for i, r := range f.Results {
		out[i] = r.Score
	}
	return out
}
