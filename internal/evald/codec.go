// Package evald exposes the scoring kernel to remote hosts over gRPC and
// HTTP and serves the evaluation records and metrics of the local evaluator.
package evald

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/converter-eval/internal/scoring"
	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
)

// ScoreRequest is a decoded log scoring request
type ScoreRequest struct {
	Log        *simlog.Log
	Source     float64
	NumOutputs int
}

// DecodeScoreRequest reads
//
//	{time: [...], outputs: [[...], ...], targets: [[...], ...], source: x, num_outputs: n}
//
// num_outputs is optional and defaults to the number of output channels.
func DecodeScoreRequest(s *structpb.Struct) (*ScoreRequest, error) {
	if s == nil {
		return nil, errors.New("request is empty")
	}
	fields := s.GetFields()

	tm, err := numberList(fields["time"], "time")
	if err != nil {
		return nil, err
	}
	outputs, err := numberMatrix(fields["outputs"], "outputs")
	if err != nil {
		return nil, err
	}
	targets, err := numberMatrix(fields["targets"], "targets")
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, errors.New("outputs: at least one channel is required")
	}
	if len(targets) != len(outputs) {
		return nil, fmt.Errorf("targets: expected %d channels, got %d", len(outputs), len(targets))
	}

	l := simlog.New(len(outputs))
	l.Time = tm
	l.Outputs = outputs
	l.Targets = targets
	l.Source = make([]float64, len(tm))
	if err := l.Validate(); err != nil {
		return nil, err
	}

	req := &ScoreRequest{Log: l, NumOutputs: len(outputs)}
	if v, ok := fields["source"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, errors.New("source must be a number")
		}
		req.Source = n.NumberValue
	}
	for i := range l.Source {
		l.Source[i] = req.Source
	}
	if v, ok := fields["num_outputs"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok || n.NumberValue != float64(int(n.NumberValue)) {
			return nil, errors.New("num_outputs must be an integer")
		}
		req.NumOutputs = int(n.NumberValue)
	}
	return req, nil
}

// EncodeScoreResponse builds
//
//	{score, integrated_errors, zero_output, source_output, same_output, degenerate}
func EncodeScoreResponse(score float64, r *scoring.ErrorReport) (*structpb.Struct, error) {
	zero := make([]any, len(r.ZeroOutput))
	for i, v := range r.ZeroOutput {
		zero[i] = v
	}
	src := make([]any, len(r.SourceOutput))
	for i, v := range r.SourceOutput {
		src[i] = v
	}
	errs := make([]any, len(r.Integrated))
	for i, v := range r.Integrated {
		errs[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"score":             score,
		"integrated_errors": errs,
		"zero_output":       zero,
		"source_output":     src,
		"same_output":       r.SameOutput,
		"degenerate":        r.Degenerate(),
	})
}

func numberList(v *structpb.Value, name string) ([]float64, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%s must be a list of numbers", name)
	}
	out := make([]float64, len(list.GetValues()))
	for i, item := range list.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not a number", name, i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

func numberMatrix(v *structpb.Value, name string) ([][]float64, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%s must be a list of channels", name)
	}
	out := make([][]float64, len(list.GetValues()))
	for k, ch := range list.GetValues() {
		row, err := numberList(ch, fmt.Sprintf("%s[%d]", name, k))
		if err != nil {
			return nil, err
		}
		out[k] = row
	}
	return out, nil
}
