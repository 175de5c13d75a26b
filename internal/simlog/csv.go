package simlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteCSV writes the log as CSV with a header row in ChannelNames order.
func WriteCSV(w io.Writer, l *Log) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(l.ChannelNames()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, 0, 3+2*l.NumOutputs())
	for i := range l.Time {
		row = row[:0]
		row = append(row, formatFloat(l.Time[i]))
		for k := range l.Outputs {
			row = append(row, formatFloat(l.Outputs[k][i]))
		}
		for k := range l.Targets {
			row = append(row, formatFloat(l.Targets[k][i]))
		}
		row = append(row, formatFloat(at(l.State, i)), formatFloat(at(l.Source, i)))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the log to path, creating parent directories.
func WriteCSVFile(path string, l *Log) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create log file %s: %w", path, err)
	}
	if err := WriteCSV(f, l); err != nil {
		_ = f.Close()
		return fmt.Errorf("write log file %s: %w", path, err)
	}
	return f.Close()
}

// ReadCSV parses a log written by WriteCSV. Columns are matched by name so
// their order does not matter; unknown columns are ignored.
func ReadCSV(r io.Reader) (*Log, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	numOutputs := 0
	for i, name := range header {
		name = strings.TrimSpace(name)
		index[name] = i
		if strings.HasPrefix(name, "Output_") {
			numOutputs++
		}
	}
	if _, ok := index[TimeChannel]; !ok {
		return nil, fmt.Errorf("missing %q column", TimeChannel)
	}
	for k := 0; k < numOutputs; k++ {
		if _, ok := index[OutputChannel(k)]; !ok {
			return nil, fmt.Errorf("missing %q column", OutputChannel(k))
		}
		if _, ok := index[TargetChannel(k)]; !ok {
			return nil, fmt.Errorf("missing %q column", TargetChannel(k))
		}
	}

	l := New(numOutputs)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(name string) (float64, error) {
			i, ok := index[name]
			if !ok {
				return 0, nil
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d, column %s: %w", line, name, err)
			}
			return v, nil
		}

		s := Sample{Outputs: make([]float64, numOutputs), Targets: make([]float64, numOutputs)}
		if s.Time, err = get(TimeChannel); err != nil {
			return nil, err
		}
		for k := 0; k < numOutputs; k++ {
			if s.Outputs[k], err = get(OutputChannel(k)); err != nil {
				return nil, err
			}
			if s.Targets[k], err = get(TargetChannel(k)); err != nil {
				return nil, err
			}
		}
		if s.State, err = get(StateChannel); err != nil {
			return nil, err
		}
		if s.Source, err = get(SourceChannel); err != nil {
			return nil, err
		}
		if err := l.Append(s); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// ReadCSVFile reads a log from path
func ReadCSVFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	defer f.Close()

	l, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read log file %s: %w", path, err)
	}
	return l, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
