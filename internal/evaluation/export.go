package evaluation

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts the fitness summary to a protobuf Struct. Logs and
// models are left out.
func (f *Fitness) ToStruct() (*structpb.Struct, error) {
	trials := make([]any, len(f.Results))
	for i, r := range f.Results {
		trial := map[string]any{
			"trial":         r.Trial,
			"scenario":      r.Scenario,
			"name":          r.Name,
			"score":         r.Score,
			"initial_state": float64(r.InitialState),
			"relaxed":       r.Relaxed,
		}
		if r.Report != nil {
			trial["integrated_errors"] = floats(r.Report.Integrated)
			trial["degenerate"] = r.Report.Degenerate()
		}
		trials[i] = trial
	}
	return structpb.NewStruct(map[string]any{
		"candidate_id": f.CandidateID,
		"generation":   f.Generation,
		"value":        f.Value,
		"outcome":      f.Outcome,
		"trials":       trials,
	})
}

// MarshalJSON exports the fitness summary with protojson
func (f *Fitness) MarshalJSON() ([]byte, error) {
	s, err := f.ToStruct()
	if err != nil {
		return nil, fmt.Errorf("convert fitness: %w", err)
	}
	return protojson.Marshal(s)
}

func floats(v []float64) []any {
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}
