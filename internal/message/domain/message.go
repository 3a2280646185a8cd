// Package domain defines the queue's core entities: messages waiting in the message
// store, the immutable archive records they turn into, and the leases that guard them.
package domain

import (
	"encoding/json"
	"time"
)

// MessageState is the logical state of a row in the message store.
type MessageState string

const (
	// MessageStateUnclaimed means nobody holds a lease on the message.
	MessageStateUnclaimed MessageState = "unclaimed"
	// MessageStateLeased means a worker holds a live lease on the message.
	MessageStateLeased MessageState = "leased"
	// MessageStateExpired means the lease lapsed and the reclaimer has not swept it yet.
	MessageStateExpired MessageState = "expired"
)

// Message is a unit of work that has not reached a terminal outcome yet.
// The row is deleted, never updated, once it settles.
type Message struct {
	ID             int64
	CreatedAt      time.Time
	Payload        json.RawMessage
	LeaseExpiresAt *time.Time
}

// State returns the logical state of the message at the given instant.
func (m *Message) State(now time.Time) MessageState {
	if m.LeaseExpiresAt == nil {
		return MessageStateUnclaimed
	}
	if m.LeaseExpiresAt.After(now) {
		return MessageStateLeased
	}
	return MessageStateExpired
}

// Archive builds the terminal record for the message.
func (m *Message) Archive(outcome Outcome, handledBy string, details *string) *ArchiveRecord {
	return &ArchiveRecord{
		CreatedAt: m.CreatedAt,
		Payload:   m.Payload,
		Outcome:   outcome,
		HandledBy: handledBy,
		Details:   details,
	}
}

// ArchiveRecord is the immutable terminal record of a message that left the message store.
type ArchiveRecord struct {
	ID         int64
	CreatedAt  time.Time
	ArchivedAt time.Time
	Payload    json.RawMessage
	Outcome    Outcome
	HandledBy  string
	Details    *string
}

// IsDeadLetter reports whether the record describes a message that did not succeed.
func (r *ArchiveRecord) IsDeadLetter() bool {
	return r.Outcome.IsDeadLetter()
}

// QueueStats summarizes both stores.
type QueueStats struct {
	Unclaimed int64
	Leased    int64
	Expired   int64
	Archived  map[Outcome]int64
}

// ClearResult reports how many rows a bulk clear removed from each store.
type ClearResult struct {
	Messages int64
	Archived int64
}
