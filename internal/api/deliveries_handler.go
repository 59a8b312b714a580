package api

import (
	"net/http"

	"github.com/ignite/notify-engine/internal/pkg/httputil"
	"github.com/ignite/notify-engine/internal/storage"
)

const maxDeliveries = 500

// ListDeliveries returns one UTC day of audited deliveries, newest first.
//
//	GET /api/deliveries?day=YYYY-MM-DD&limit=N
func (h *Handlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.Deliveries == nil {
		httputil.NotFound(w, "delivery audit log is not configured")
		return
	}
	q := r.URL.Query()
	day, err := storage.ParseDay(q.Get("day"), h.now())
	if err != nil {
		httputil.FieldError(w, "day", "day must be formatted YYYY-MM-DD")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		httputil.FieldError(w, "limit", "limit must be a non-negative integer")
		return
	}
	if limit > maxDeliveries {
		limit = maxDeliveries
	}

	items, err := h.Deliveries.Recent(r.Context(), day, limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if items == nil {
		items = []storage.Delivery{}
	}
	httputil.OK(w, map[string]interface{}{
		"day":        day.Format("2006-01-02"),
		"deliveries": items,
		"count":      len(items),
	})
}
