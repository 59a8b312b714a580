package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ignite/notify-engine/internal/pkg/httputil"
	"github.com/ignite/notify-engine/internal/schedule"
)

const (
	defaultPreview = 3
	maxPreview     = 20
)

type compileRequest struct {
	Schedule   schedule.Schedule `json:"schedule"`
	TimeZoneID string            `json:"time_zone_id"`
	Preview    int               `json:"preview"`
}

type decompileRequest struct {
	CronExpression string `json:"cron_expression"`
	TimeZoneID     string `json:"time_zone_id"`
	Preview        int    `json:"preview"`
}

type scheduleResponse struct {
	CronExpression string             `json:"cron_expression"`
	Schedule       *schedule.Schedule `json:"schedule,omitempty"`
	TimeZoneID     string             `json:"time_zone_id"`
	NextFire       []time.Time        `json:"next_fire"`
}

// CompileSchedule turns a structured schedule into a cron expression and
// previews its next fire times in the given zone.
//
//	POST /api/schedules/compile
func (h *Handlers) CompileSchedule(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	expr, err := schedule.Compile(req.Schedule)
	if err != nil {
		respondError(w, err)
		return
	}
	h.respondSchedule(w, expr, nil, req.TimeZoneID, req.Preview)
}

// DecompileSchedule reconstructs the structured form of a compiled
// expression.
//
//	POST /api/schedules/decompile
func (h *Handlers) DecompileSchedule(w http.ResponseWriter, r *http.Request) {
	var req decompileRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	s, err := schedule.Decompile(strings.TrimSpace(req.CronExpression))
	if err != nil {
		respondError(w, err)
		return
	}
	h.respondSchedule(w, strings.TrimSpace(req.CronExpression), &s, req.TimeZoneID, req.Preview)
}

func (h *Handlers) respondSchedule(w http.ResponseWriter, expr string, s *schedule.Schedule, tz string, preview int) {
	if strings.TrimSpace(tz) == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		httputil.FieldError(w, "time_zone_id", "time zone is not a known IANA zone")
		return
	}
	if preview <= 0 {
		preview = defaultPreview
	}
	if preview > maxPreview {
		preview = maxPreview
	}

	next := make([]time.Time, 0, preview)
	at := h.now()
	for i := 0; i < preview; i++ {
		at, err = schedule.NextFire(expr, loc, at)
		if err != nil {
			respondError(w, err)
			return
		}
		next = append(next, at)
	}
	httputil.OK(w, scheduleResponse{CronExpression: expr, Schedule: s, TimeZoneID: tz, NextFire: next})
}
