package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
)

// Instructions understood by InstructionHandler as the first element of the payload array.
const (
	InstructionFail    = "fail"
	InstructionReject  = "reject"
	InstructionTimeout = "timeout"
	InstructionRaise   = "raise"
)

// InstructionHandler is a demonstration handler driven by the payload itself. The payload
// must be a non-empty JSON array whose first element selects the behavior.
type InstructionHandler struct {
	// Overrun is how long the timeout instruction keeps sleeping after the deadline.
	Overrun time.Duration
}

// NewInstructionHandler creates an InstructionHandler that overruns deadlines by one second.
func NewInstructionHandler() *InstructionHandler {
	return &InstructionHandler{Overrun: time.Second}
}

// Handle implements Handler.
func (h *InstructionHandler) Handle(ctx context.Context, payload json.RawMessage) (Result, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil || items == nil {
		return resultOf(domain.OutcomeRejected, "invalid message format"), nil
	}
	if len(items) == 0 {
		return resultOf(domain.OutcomeRejected, "no message in list"), nil
	}

	var instruction string
	_ = json.Unmarshal(items[0], &instruction)

	switch instruction {
	case InstructionFail:
		return resultOf(domain.OutcomeFailed, "explicit fail instruction received"), nil
	case InstructionReject:
		return resultOf(domain.OutcomeRejected, "explicit reject instruction received"), nil
	case InstructionTimeout:
		// Ignores ctx on purpose so the worker has to enforce the deadline itself.
		sleep := h.Overrun
		if deadline, ok := ctx.Deadline(); ok {
			sleep += time.Until(deadline)
		}
		time.Sleep(sleep)
		return Result{}, errors.New("deadline should have fired")
	case InstructionRaise:
		panic("explicit raise instruction received")
	default:
		return resultOf(domain.OutcomeSuccess, "fake work was done"), nil
	}
}
