// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/leasemq/internal/errors"
	"github.com/allisson/leasemq/internal/message/domain"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// WorkerOutcome validates that a string names an outcome a worker may settle with.
var WorkerOutcome = validation.NewStringRuleWithError(
	func(s string) bool {
		return domain.Outcome(s).IsWorkerOutcome()
	},
	validation.NewError("validation_worker_outcome", "must be one of success, failed or rejected"),
)

// Outcome validates that a string names any archive outcome.
var Outcome = validation.NewStringRuleWithError(
	func(s string) bool {
		return domain.Outcome(s).Validate() == nil
	},
	validation.NewError("validation_outcome", "must be one of success, failed, rejected or lease_expired"),
)
