package domain

// Outcome is the terminal result recorded in the archive. The set is closed.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeFailed       Outcome = "failed"
	OutcomeRejected     Outcome = "rejected"
	OutcomeLeaseExpired Outcome = "lease_expired"
)

// Outcomes lists every valid outcome.
var Outcomes = []Outcome{OutcomeSuccess, OutcomeFailed, OutcomeRejected, OutcomeLeaseExpired}

// Validate returns ErrInvalidOutcome for values outside the closed set.
func (o Outcome) Validate() error {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomeRejected, OutcomeLeaseExpired:
		return nil
	default:
		return ErrInvalidOutcome
	}
}

// IsDeadLetter reports whether the outcome triggers a dead_message signal.
func (o Outcome) IsDeadLetter() bool {
	return o != OutcomeSuccess
}

// IsWorkerOutcome reports whether a worker may settle with this outcome.
// lease_expired is reserved for the reclaimer.
func (o Outcome) IsWorkerOutcome() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomeRejected:
		return true
	default:
		return false
	}
}

// ParseOutcome converts a string into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if err := o.Validate(); err != nil {
		return "", err
	}
	return o, nil
}
