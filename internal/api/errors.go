package api

import (
	"errors"
	"net/http"

	"github.com/ignite/notify-engine/internal/automation"
	"github.com/ignite/notify-engine/internal/pkg/httputil"
	"github.com/ignite/notify-engine/internal/schedule"
	"github.com/ignite/notify-engine/internal/service/rule"
)

// eventFields maps event validation errors to the request field at fault.
var eventFields = map[error]string{
	automation.ErrResourceTypeRequired: "resource_type",
	automation.ErrTriggerTypeRequired:  "trigger_type",
	automation.ErrTemplateKeyRequired:  "template_key",
}

// respondError maps service errors to HTTP responses. Validation errors are
// the caller's fault and are never logged as system errors.
func respondError(w http.ResponseWriter, err error) {
	var ve *rule.ValidationError
	var se *schedule.ValidationError
	switch {
	case errors.As(err, &ve):
		httputil.FieldError(w, ve.Field, err.Error())
	case errors.As(err, &se):
		httputil.FieldError(w, se.Field, err.Error())
	case errors.Is(err, rule.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, rule.ErrVersionConflict):
		httputil.Conflict(w, err.Error())
	default:
		for sentinel, field := range eventFields {
			if errors.Is(err, sentinel) {
				httputil.FieldError(w, field, err.Error())
				return
			}
		}
		httputil.InternalError(w, err)
	}
}
