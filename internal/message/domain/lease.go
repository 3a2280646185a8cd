package domain

import (
	"time"
)

// Lease is the proof of ownership returned by a successful acquire.
// Token is the lease_expires_at written by that acquire; a settle must present it.
type Lease struct {
	Message *Message
	Token   time.Time
}

// NewLease builds a lease from a freshly acquired message.
func NewLease(msg *Message) (*Lease, error) {
	if msg == nil || msg.LeaseExpiresAt == nil {
		return nil, ErrNotAvailable
	}
	return &Lease{Message: msg, Token: *msg.LeaseExpiresAt}, nil
}

// MessageID returns the id of the leased message.
func (l *Lease) MessageID() int64 {
	return l.Message.ID
}

// ExpiresAt returns when the lease lapses.
func (l *Lease) ExpiresAt() time.Time {
	return l.Token
}

// Remaining returns how long the lease is still valid at the given instant.
func (l *Lease) Remaining(now time.Time) time.Duration {
	return l.Token.Sub(now)
}
