// Command rescore recomputes the fitness of recorded scenario logs
// (testcase_<n>.csv files written by the evaluator) with the scoring
// settings of an evaluator configuration.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/GoSim-25-26J-441/converter-eval/internal/scoring"
	"github.com/GoSim-25-26J-441/converter-eval/internal/simlog"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/config"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/logger"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/utils"
)

var testcaseFile = regexp.MustCompile(`^testcase_(\d+)\.csv$`)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logger.Error("rescore failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rescore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "evaluator configuration file (defaults when empty)")
	logDir := fs.String("logs", "", "directory holding testcase_<n>.csv logs")
	penalty := fs.Float64("penalty", 0, "override scoring.penalty_factor")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger.SetDefault(logger.NewText(*logLevel, stderr))

	cfg := config.DefaultEvalConfig()
	if *configPath != "" {
		loaded, err := config.LoadEvalConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if *logDir == "" {
		*logDir = cfg.Diagnostics.LogDir
	}
	if *logDir == "" {
		return errors.New("no log directory: pass -logs or set diagnostics.log_dir")
	}
	opts := scoring.Options{PenaltyFactor: cfg.Scoring.PenaltyFactor, ZeroTargetError: cfg.Scoring.ZeroTargetError}
	if *penalty != 0 {
		opts.PenaltyFactor = *penalty
	}

	files, err := findLogs(*logDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no testcase_<n>.csv logs in %s", *logDir)
	}

	scores := make([]float64, 0, len(files))
	for trial, f := range files {
		l, err := simlog.ReadCSVFile(f.path)
		if err != nil {
			return err
		}
		source := 0.0
		if n := len(l.Source); n > 0 {
			source = l.Source[n-1]
		}
		numOutputs := cfg.Simulation.NumOutputs
		if numOutputs > l.NumOutputs() {
			numOutputs = l.NumOutputs()
		}

		score, report, err := scoring.ScoreLog(l, numOutputs, source, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", f.path, err)
		}
		logger.Debug("log rescored", "file", f.path, "errors", report.Integrated, "degenerate", report.Degenerate())
		fmt.Fprintf(stdout, "trial %d scenario %d score %g\n", trial, f.scenario, score)
		scores = append(scores, score)
	}
	fmt.Fprintf(stdout, "fitness %g\n", utils.Mean(scores))
	return nil
}

type logFile struct {
	scenario int
	path     string
}

// findLogs lists the scenario logs of dir in evaluation order: last
// scenario first.
func findLogs(dir string) ([]logFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read log dir: %w", err)
	}
	var out []logFile
	for _, e := range entries {
		m := testcaseFile.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		g, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, logFile{scenario: g, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].scenario > out[j].scenario })
	return out, nil
}
