package simlog

import (
	"fmt"
	"strconv"
)

// Channel names used when a log is exported or exchanged.
const (
	TimeChannel   = "time"
	StateChannel  = "State"
	SourceChannel = "S1"
)

// OutputChannel returns the name of output channel k
func OutputChannel(k int) string {
	return "Output_" + strconv.Itoa(k)
}

// TargetChannel returns the name of target channel k
func TargetChannel(k int) string {
	return "Target_" + strconv.Itoa(k)
}

// Log is the time series recorded while a candidate model is simulated.
// Every series is co-indexed by Time. The set of channels is fixed: one
// output and one target per tracked output, the discrete switch state and
// the source value.
type Log struct {
	Time    []float64
	Outputs [][]float64
	Targets [][]float64
	State   []float64
	Source  []float64
}

// Sample is one row of a Log
type Sample struct {
	Time    float64
	Outputs []float64
	Targets []float64
	State   float64
	Source  float64
}

// New creates an empty log for numOutputs tracked outputs
func New(numOutputs int) *Log {
	l := &Log{
		Outputs: make([][]float64, numOutputs),
		Targets: make([][]float64, numOutputs),
	}
	return l
}

// NumOutputs returns the number of tracked output channels
func (l *Log) NumOutputs() int {
	return len(l.Outputs)
}

// Len returns the number of samples recorded
func (l *Log) Len() int {
	return len(l.Time)
}

// Append records one sample. The sample must carry one output and one target
// per tracked output.
func (l *Log) Append(s Sample) error {
	if len(s.Outputs) != l.NumOutputs() || len(s.Targets) != l.NumOutputs() {
		return fmt.Errorf("sample has %d outputs and %d targets, log tracks %d", len(s.Outputs), len(s.Targets), l.NumOutputs())
	}
	l.Time = append(l.Time, s.Time)
	for k := range l.Outputs {
		l.Outputs[k] = append(l.Outputs[k], s.Outputs[k])
		l.Targets[k] = append(l.Targets[k], s.Targets[k])
	}
	l.State = append(l.State, s.State)
	l.Source = append(l.Source, s.Source)
	return nil
}

// Clear drops every sample but keeps the channel layout
func (l *Log) Clear() {
	l.Time = l.Time[:0]
	for k := range l.Outputs {
		l.Outputs[k] = l.Outputs[k][:0]
		l.Targets[k] = l.Targets[k][:0]
	}
	l.State = l.State[:0]
	l.Source = l.Source[:0]
}

// Validate checks that the log holds at least one sample and that every
// channel is co-indexed with the time axis.
func (l *Log) Validate() error {
	n := len(l.Time)
	if n == 0 {
		return fmt.Errorf("simulation log is empty")
	}
	if len(l.Targets) != len(l.Outputs) {
		return fmt.Errorf("log has %d output channels but %d target channels", len(l.Outputs), len(l.Targets))
	}
	for k := range l.Outputs {
		if len(l.Outputs[k]) != n {
			return fmt.Errorf("channel %s has %d samples, time axis has %d", OutputChannel(k), len(l.Outputs[k]), n)
		}
		if len(l.Targets[k]) != n {
			return fmt.Errorf("channel %s has %d samples, time axis has %d", TargetChannel(k), len(l.Targets[k]), n)
		}
	}
	if len(l.State) != 0 && len(l.State) != n {
		return fmt.Errorf("channel %s has %d samples, time axis has %d", StateChannel, len(l.State), n)
	}
	if len(l.Source) != 0 && len(l.Source) != n {
		return fmt.Errorf("channel %s has %d samples, time axis has %d", SourceChannel, len(l.Source), n)
	}
	return nil
}

// Clone returns a deep copy of the log
func (l *Log) Clone() *Log {
	if l == nil {
		return nil
	}
	out := &Log{
		Time:    append([]float64(nil), l.Time...),
		Outputs: make([][]float64, len(l.Outputs)),
		Targets: make([][]float64, len(l.Targets)),
		State:   append([]float64(nil), l.State...),
		Source:  append([]float64(nil), l.Source...),
	}
	for k := range l.Outputs {
		out.Outputs[k] = append([]float64(nil), l.Outputs[k]...)
	}
	for k := range l.Targets {
		out.Targets[k] = append([]float64(nil), l.Targets[k]...)
	}
	return out
}

// ChannelNames lists the channels of the log in export order
func (l *Log) ChannelNames() []string {
	names := make([]string, 0, 3+2*l.NumOutputs())
	names = append(names, TimeChannel)
	for k := range l.Outputs {
		names = append(names, OutputChannel(k))
	}
	for k := range l.Targets {
		names = append(names, TargetChannel(k))
	}
	return append(names, StateChannel, SourceChannel)
}

// Channels returns a named view of the log. The slices are shared with the log.
func (l *Log) Channels() map[string][]float64 {
	out := make(map[string][]float64, 3+2*l.NumOutputs())
	out[TimeChannel] = l.Time
	for k := range l.Outputs {
		out[OutputChannel(k)] = l.Outputs[k]
	}
	for k := range l.Targets {
		out[TargetChannel(k)] = l.Targets[k]
	}
	out[StateChannel] = l.State
	out[SourceChannel] = l.Source
	return out
}
