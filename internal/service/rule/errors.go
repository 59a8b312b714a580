package rule

import (
	"errors"
	"fmt"

	"github.com/ignite/notify-engine/internal/schedule"
)

// Sentinel errors for the rule service layer.
var (
	ErrNotFound        = errors.New("automation rule not found")
	ErrVersionConflict = errors.New("automation rule was modified by someone else")

	ErrNameRequired           = errors.New("name is required")
	ErrResourceTypeRequired   = errors.New("resource type is required")
	ErrTriggerTypeRequired    = errors.New("trigger type is required")
	ErrInvalidExecutionType   = errors.New("execution type must be EventBased or Scheduled")
	ErrTemplateKeyRequired    = errors.New("template key is required")
	ErrCronExpressionRequired = errors.New("cron expression is required for scheduled rules")
	ErrInvalidCronExpression  = errors.New("cron expression is not valid")
	ErrTimeZoneRequired       = errors.New("time zone is required for scheduled rules")
	ErrInvalidTimeZone        = errors.New("time zone is not a known IANA zone")
	ErrRecipientsRequired     = errors.New("at least one recipient is required")
	ErrInvalidRecipient       = errors.New("recipient has no target for its type")
)

// ValidationError names the rule field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is a rule or schedule validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	var se *schedule.ValidationError
	return errors.As(err, &ve) || errors.As(err, &se)
}
