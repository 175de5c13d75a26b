package config

// CausalityMode selects what happens when no switch configuration yields a
// solvable initial state.
type CausalityMode string

const (
	// CausalityStrict turns differential causality off and scores the
	// candidate 0 when no valid initial state exists.
	CausalityStrict CausalityMode = "strict"
	// CausalityRelaxed switches the model into differential-causality
	// tolerant solving and starts from configuration 0.
	CausalityRelaxed CausalityMode = "relaxed"
)

// Sentinel values for Limits.MaxSwitches and Schedule.GenerationSteps.
const (
	UnlimitedSwitches    = -1
	AlwaysActiveSchedule = -1
)

// EvalConfig is the evaluator configuration
type EvalConfig struct {
	Simulation  Simulation     `yaml:"simulation"`
	Causality   Causality      `yaml:"causality"`
	Limits      Limits         `yaml:"limits"`
	Scoring     Scoring        `yaml:"scoring"`
	Schedule    Schedule       `yaml:"schedule"`
	Scenarios   []ScenarioSpec `yaml:"scenarios"`
	Diagnostics Diagnostics    `yaml:"diagnostics"`
	Logging     Logging        `yaml:"logging"`
	Storage     Storage        `yaml:"storage"`
}

// Simulation holds the time-integration settings shared by every scenario
type Simulation struct {
	Duration      float64 `yaml:"duration"`
	TimeStep      float64 `yaml:"time_step"`
	NumOutputs    int     `yaml:"num_outputs"`
	NumParameters int     `yaml:"num_parameters"`
}

// Causality configures the initial-state search fallback
type Causality struct {
	Mode CausalityMode `yaml:"mode"`
}

// Limits bounds the candidates that are worth simulating
type Limits struct {
	MaxSwitches int `yaml:"max_switches"` // -1 is unlimited
}

// Scoring configures the error-to-fitness conversion
type Scoring struct {
	PenaltyFactor   float64 `yaml:"penalty_factor"`
	ZeroTargetError float64 `yaml:"zero_target_error"`
}

// Schedule is the generation activation schedule, one threshold per scenario
type Schedule struct {
	GenerationSteps []float64 `yaml:"generation_steps"`
}

// Diagnostics configures the on-disk debugging artifacts
type Diagnostics struct {
	DumpDir  string `yaml:"dump_dir"`
	LogDir   string `yaml:"log_dir,omitempty"`
	FailHard bool   `yaml:"fail_hard"`
}

// Logging selects the structured logger
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Storage drivers
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Storage selects where evaluation records are kept
type Storage struct {
	Driver string `yaml:"driver"` // memory or sqlite
	Path   string `yaml:"path,omitempty"`
}

// DefaultEvalConfig returns the configuration used for any key the YAML omits.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Simulation: Simulation{
			Duration:      15,
			TimeStep:      1e-4,
			NumOutputs:    3,
			NumParameters: 3,
		},
		Causality: Causality{Mode: CausalityStrict},
		Limits:    Limits{MaxSwitches: UnlimitedSwitches},
		Scoring: Scoring{
			PenaltyFactor:   0.75,
			ZeroTargetError: 1e6,
		},
		Schedule:    Schedule{GenerationSteps: []float64{AlwaysActiveSchedule}},
		Diagnostics: Diagnostics{DumpDir: "bug"},
		Logging:     Logging{Level: "info", Format: "json"},
		Storage:     Storage{Driver: StorageMemory},
	}
}

// AlwaysActive reports whether the schedule is the "all scenarios always active" sentinel.
func (s Schedule) AlwaysActive() bool {
	return len(s.GenerationSteps) == 0 || s.GenerationSteps[0] < 0
}
