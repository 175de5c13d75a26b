package config

// ScenarioSpec is one target-tracking test case as written in the config
type ScenarioSpec struct {
	Name        string           `yaml:"name,omitempty"`
	Breakpoints []BreakpointSpec `yaml:"breakpoints"`
}

// BreakpointSpec applies new targets and circuit parameters at Time
type BreakpointSpec struct {
	Time       float64   `yaml:"time"`
	Targets    []float64 `yaml:"targets"`
	Parameters []float64 `yaml:"parameters"`
}
