package config

import (
	"fmt"
	"math"
	"os"
)

// LoadEvalConfig loads and parses an evaluator configuration file
func LoadEvalConfig(path string) (*EvalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseEvalConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateEvalConfig performs validation on the configuration. Every failure
// is a *ConfigurationError.
func ValidateEvalConfig(cfg *EvalConfig) error {
	if cfg == nil {
		return &ConfigurationError{Err: fmt.Errorf("config is nil")}
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return &ConfigurationError{Err: err}
	}
	if err := validateSimulation(cfg.Simulation); err != nil {
		return &ConfigurationError{Err: fmt.Errorf("simulation: %w", err)}
	}
	if cfg.Causality.Mode != CausalityStrict && cfg.Causality.Mode != CausalityRelaxed {
		return &ConfigurationError{Err: fmt.Errorf("causality mode must be strict or relaxed, got %q", cfg.Causality.Mode)}
	}
	if cfg.Limits.MaxSwitches < UnlimitedSwitches {
		return &ConfigurationError{Err: fmt.Errorf("max_switches must be -1 (unlimited) or non-negative, got %d", cfg.Limits.MaxSwitches)}
	}
	if err := validateScoring(cfg.Scoring); err != nil {
		return &ConfigurationError{Err: fmt.Errorf("scoring: %w", err)}
	}
	if err := ValidateScenarios(cfg.Scenarios, cfg.Simulation); err != nil {
		return err
	}
	if err := ValidateSchedule(cfg.Schedule, len(cfg.Scenarios)); err != nil {
		return err
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return &ConfigurationError{Err: fmt.Errorf("storage: %w", err)}
	}
	return nil
}

// validateLogging validates the logger settings
func validateLogging(l Logging) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", l.Level)
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", l.Format)
	}
	return nil
}

// validateSimulation validates the time-integration settings
func validateSimulation(s Simulation) error {
	if !(s.Duration > 0) || math.IsInf(s.Duration, 0) {
		return fmt.Errorf("duration must be positive and finite, got %g", s.Duration)
	}
	if !(s.TimeStep > 0) || s.TimeStep > s.Duration {
		return fmt.Errorf("time_step must be in (0, duration], got %g", s.TimeStep)
	}
	if s.NumOutputs < 1 {
		return fmt.Errorf("num_outputs must be at least 1, got %d", s.NumOutputs)
	}
	// the synthetic target divides by parameter k+1 for every target k
	if s.NumParameters < s.NumOutputs {
		return fmt.Errorf("num_parameters (%d) must be at least num_outputs (%d)", s.NumParameters, s.NumOutputs)
	}
	return nil
}

// validateScoring validates the fitness conversion settings
func validateScoring(s Scoring) error {
	if !(s.PenaltyFactor > 0) || s.PenaltyFactor > 1 {
		return fmt.Errorf("penalty_factor must be in (0, 1], got %g", s.PenaltyFactor)
	}
	if !(s.ZeroTargetError > 0) || math.IsInf(s.ZeroTargetError, 0) {
		return fmt.Errorf("zero_target_error must be positive and finite, got %g", s.ZeroTargetError)
	}
	return nil
}

// validateStorage validates the evaluation record store settings
func validateStorage(s Storage) error {
	switch s.Driver {
	case StorageMemory:
		return nil
	case StorageSQLite:
		if s.Path == "" {
			return fmt.Errorf("sqlite driver requires a path")
		}
		return nil
	default:
		return fmt.Errorf("invalid driver: %s (must be memory or sqlite)", s.Driver)
	}
}

// ValidateScenarios checks every breakpoint of every scenario against the
// simulation settings.
func ValidateScenarios(scenarios []ScenarioSpec, sim Simulation) error {
	if len(scenarios) == 0 {
		return &ConfigurationError{Err: fmt.Errorf("at least one scenario must be defined")}
	}
	for g, sc := range scenarios {
		if len(sc.Breakpoints) == 0 {
			return &ConfigurationError{Err: fmt.Errorf("scenario %d: at least one breakpoint must be defined", g)}
		}
		if sc.Breakpoints[0].Time != 0 {
			return &ConfigurationError{Err: fmt.Errorf("scenario %d: first breakpoint must be at time 0, got %g", g, sc.Breakpoints[0].Time)}
		}
		for i, bp := range sc.Breakpoints {
			if err := ValidateBreakpoint(bp, sim); err != nil {
				return &ConfigurationError{Err: fmt.Errorf("scenario %d, breakpoint %d: %w", g, i, err)}
			}
			if i > 0 && bp.Time <= sc.Breakpoints[i-1].Time {
				return &ConfigurationError{Err: fmt.Errorf("scenario %d, breakpoint %d: time %g is not after %g", g, i, bp.Time, sc.Breakpoints[i-1].Time)}
			}
		}
	}
	return nil
}

// ValidateBreakpoint checks a single breakpoint. A breakpoint at or after the
// end of the simulation would never be applied.
func ValidateBreakpoint(bp BreakpointSpec, sim Simulation) error {
	if bp.Time < 0 || bp.Time >= sim.Duration {
		return fmt.Errorf("control target applied at %g, outside [0, %g)", bp.Time, sim.Duration)
	}
	if len(bp.Targets) != sim.NumOutputs-1 {
		return fmt.Errorf("expected %d target values, got %d", sim.NumOutputs-1, len(bp.Targets))
	}
	if len(bp.Parameters) != sim.NumParameters {
		return fmt.Errorf("expected %d parameter values, got %d", sim.NumParameters, len(bp.Parameters))
	}
	for k := range bp.Targets {
		if bp.Parameters[0]*bp.Parameters[k+1] == 0 {
			return fmt.Errorf("parameters 0 and %d must be non-zero to derive the synthetic target", k+1)
		}
	}
	return nil
}

// ValidateSchedule checks the generation activation schedule. A schedule
// whose first entry is negative means every scenario is always active.
func ValidateSchedule(s Schedule, numScenarios int) error {
	if s.AlwaysActive() {
		return nil
	}
	if s.GenerationSteps[0] != 0 {
		return &ConfigurationError{Err: fmt.Errorf("generation_steps: first scenario must activate at generation 0, got %g", s.GenerationSteps[0])}
	}
	if len(s.GenerationSteps) != numScenarios {
		return &ConfigurationError{Err: fmt.Errorf("generation_steps: expected %d thresholds (one per scenario), got %d", numScenarios, len(s.GenerationSteps))}
	}
	for g, step := range s.GenerationSteps {
		if step < 0 {
			return &ConfigurationError{Err: fmt.Errorf("generation_steps: threshold %d is negative (%g)", g, step)}
		}
	}
	return nil
}
