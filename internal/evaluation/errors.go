package evaluation

import "fmt"

// RuntimeFailure reports an evaluation aborted by the candidate's model,
// either through a returned error or a panic.
type RuntimeFailure struct {
	CandidateID string
	Generation  int
	// Step names the evaluation stage that failed
	Step string
	// DumpPath is the diagnostic dump written for the failure, if any
	DumpPath string
	Err      error
}

func (e *RuntimeFailure) Error() string {
	msg := fmt.Sprintf("candidate %s (generation %d) failed during %s: %v", e.CandidateID, e.Generation, e.Step, e.Err)
	if e.DumpPath != "" {
		msg += " (dumped to " + e.DumpPath + ")"
	}
	return msg
}

func (e *RuntimeFailure) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking model
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("model panic: %v", e.Value)
}
