// Package worker consumes new_message hints and drives each message through the lease
// protocol: acquire, process within the lease budget, settle.
package worker

import (
	"context"
	"encoding/json"

	"github.com/allisson/leasemq/internal/message/domain"
)

// Result is what a handler decided about a message.
type Result struct {
	Outcome domain.Outcome
	Details *string
}

// Handler processes a message payload. ctx carries the processing deadline; work that
// outlives it is recorded as failed. A returned error or a panic is recorded as failed too.
type Handler interface {
	Handle(ctx context.Context, payload json.RawMessage) (Result, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (Result, error)

// Handle calls f(ctx, payload).
func (f HandlerFunc) Handle(ctx context.Context, payload json.RawMessage) (Result, error) {
	return f(ctx, payload)
}

func resultOf(outcome domain.Outcome, details string) Result {
	return Result{Outcome: outcome, Details: &details}
}
