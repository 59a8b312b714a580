package api

import (
	"net/http"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/pkg/httputil"
)

// HandleEvent runs the event path synchronously and reports the outcome.
// Per-recipient failures are part of the outcome, not an error.
//
//	POST /api/events
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.EventContext
	if !httputil.Decode(w, r, &ev) {
		return
	}
	out, err := h.Events.HandleEvent(r.Context(), ev)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Accepted(w, out)
}
