package domain

import "fmt"

// Status is the lifecycle state of an animal in the shelter.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusReserved    Status = "reserved"
	StatusAdopted     Status = "adopted"
	StatusReturned    Status = "returned"
	StatusQuarantine  Status = "quarantine"
	StatusUnadoptable Status = "unadoptable"
)

// AllStatuses lists every status in a stable order.
var AllStatuses = []Status{
	StatusAvailable,
	StatusReserved,
	StatusAdopted,
	StatusReturned,
	StatusQuarantine,
	StatusUnadoptable,
}

// allowedTransitions is the full transition table. unadoptable is
// terminal: no outgoing edges. Self-transitions are never listed.
var allowedTransitions = map[Status][]Status{
	StatusAvailable:   {StatusReserved, StatusUnadoptable},
	StatusReserved:    {StatusAdopted, StatusAvailable},
	StatusAdopted:     {StatusReturned},
	StatusReturned:    {StatusQuarantine, StatusAvailable, StatusUnadoptable},
	StatusQuarantine:  {StatusAvailable, StatusUnadoptable},
	StatusUnadoptable: {},
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown animal status %q", s)
}

// InvalidTransitionError reports an illegal status change attempt.
// Allowed carries the legal targets from the current status.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s (allowed from %s: %v)", e.From, e.To, e.From, e.Allowed)
}

// AllowedTransitions returns the legal targets from a status.
func AllowedTransitions(from Status) []Status {
	targets := allowedTransitions[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// ValidateTransition checks the transition table. It is pure and
// total over the status space; anything not listed fails, including
// every self-transition.
func ValidateTransition(from, to Status) error {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to, Allowed: AllowedTransitions(from)}
}
