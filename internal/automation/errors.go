package automation

import "errors"

// Sentinel errors for the event entry point. All are caller mistakes.
var (
	ErrResourceTypeRequired = errors.New("event resource type is required")
	ErrTriggerTypeRequired  = errors.New("event trigger type is required")
	ErrTemplateKeyRequired  = errors.New("event template key is required when no rule matches")
)
