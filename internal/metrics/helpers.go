package metrics

// Metric labels
const (
	LabelOutcome   = "outcome"
	LabelTransport = "transport"
)

// Transports of the scoring daemon
const (
	TransportGRPC = "grpc"
	TransportHTTP = "http"
)

// Evaluation outcomes
const (
	OutcomeScored             = "scored"
	OutcomeSwitchLimit        = "switch_limit"
	OutcomeNoInitialState     = "no_initial_state"
	OutcomeCausalityViolation = "causality_violation"
	OutcomeRuntimeFailure     = "runtime_failure"
)

// Outcomes lists every outcome label value
func Outcomes() []string {
	return []string{OutcomeScored, OutcomeSwitchLimit, OutcomeNoInitialState, OutcomeCausalityViolation, OutcomeRuntimeFailure}
}
