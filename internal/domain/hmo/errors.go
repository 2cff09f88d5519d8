package hmo

import "fmt"

// ValidationError reports a rejected claim or coverage request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hmo: invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports an adjudication move the state machine does
// not allow.
type InvalidTransitionError struct {
	From ClaimStatus
	To   ClaimStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("hmo: cannot transition claim from %s to %s", e.From, e.To)
}
