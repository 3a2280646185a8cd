// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/json"
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/leasemq/internal/validation"
)

// maxLeaseSeconds bounds a single lease so a stuck worker cannot hide a message for long.
const maxLeaseSeconds = 3600

// PublishMessageRequest contains the payload of a new message.
type PublishMessageRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// Validate checks if the publish request is valid.
func (r *PublishMessageRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Payload,
			validation.Required,
			customValidation.JSONDocument,
		),
	)
}

// AcquireLeaseRequest contains the lease a caller wants on a message.
type AcquireLeaseRequest struct {
	LeaseSeconds int `json:"lease_seconds"`
}

// Validate checks if the acquire request is valid.
func (r *AcquireLeaseRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.LeaseSeconds,
			validation.Required,
			validation.Min(1),
			validation.Max(maxLeaseSeconds),
		),
	)
}

// LeaseDuration returns the requested lease as a duration.
func (r *AcquireLeaseRequest) LeaseDuration() time.Duration {
	return time.Duration(r.LeaseSeconds) * time.Second
}

// SettleLeaseRequest reports the outcome of a leased message.
type SettleLeaseRequest struct {
	LeaseToken time.Time `json:"lease_token"`
	Outcome    string    `json:"outcome"`
	HandledBy  string    `json:"handled_by"`
	Details    *string   `json:"details,omitempty"`
}

// Validate checks if the settle request is valid.
func (r *SettleLeaseRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.LeaseToken, validation.Required),
		validation.Field(&r.Outcome,
			validation.Required,
			customValidation.WorkerOutcome,
		),
		validation.Field(&r.HandledBy,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.RuneLength(1, 50),
		),
	)
}
