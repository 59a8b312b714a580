package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/pkg/httputil"
	"github.com/ignite/notify-engine/internal/service/rule"
)

type updateRuleRequest struct {
	Version int64 `json:"version"`
	rule.Input
}

// ListRules returns rules filtered by the query string.
//
//	GET /api/rules?resource_type=&execution_type=&active=true&limit=&offset=
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := rule.ListFilter{
		ResourceType:  domain.ResourceType(q.Get("resource_type")),
		ExecutionType: domain.ExecutionType(q.Get("execution_type")),
		ActiveOnly:    q.Get("active") == "true",
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		httputil.FieldError(w, "limit", "limit must be a non-negative integer")
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		httputil.FieldError(w, "offset", "offset must be a non-negative integer")
		return
	}

	rules, err := h.Rules.List(r.Context(), f)
	if err != nil {
		respondError(w, err)
		return
	}
	if rules == nil {
		rules = []domain.AutomationRule{}
	}
	httputil.OK(w, map[string]interface{}{"rules": rules, "count": len(rules)})
}

//	POST /api/rules
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	var in rule.Input
	if !httputil.Decode(w, r, &in) {
		return
	}
	created, err := h.Rules.Create(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, created)
}

//	GET /api/rules/{id}
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	got, err := h.Rules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, got)
}

// UpdateRule replaces every field and the recipient list. The body carries
// the version the author last read.
//
//	PUT /api/rules/{id}
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req updateRuleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Version <= 0 {
		httputil.FieldError(w, "version", "version is required")
		return
	}
	updated, err := h.Rules.Update(r.Context(), chi.URLParam(r, "id"), req.Version, req.Input)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, updated)
}

//	DELETE /api/rules/{id}
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Rules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	httputil.NoContent(w)
}

//	POST /api/rules/{id}/activate
func (h *Handlers) ActivateRule(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

//	POST /api/rules/{id}/deactivate
func (h *Handlers) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	got, err := h.Rules.SetActive(r.Context(), chi.URLParam(r, "id"), active)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, got)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
