package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/notify-engine/internal/automation"
	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/pkg/httputil"
	"github.com/ignite/notify-engine/internal/schedule"
	"github.com/ignite/notify-engine/internal/service/rule"
	"github.com/ignite/notify-engine/internal/storage"
)

// fakeRules is an in-memory rule service. It validates nothing beyond what
// the tests need to exercise the error mapping.
type fakeRules struct {
	mu       sync.Mutex
	rules    map[string]*domain.AutomationRule
	next     int
	filter   rule.ListFilter
	createFn func(rule.Input) error
}

func newFakeRules() *fakeRules { return &fakeRules{rules: map[string]*domain.AutomationRule{}} }

func (f *fakeRules) Get(_ context.Context, id string) (*domain.AutomationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, rule.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRules) List(_ context.Context, filter rule.ListFilter) ([]domain.AutomationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	var out []domain.AutomationRule
	for _, r := range f.rules {
		if filter.ResourceType != "" && r.ResourceType != filter.ResourceType {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRules) Create(_ context.Context, in rule.Input) (*domain.AutomationRule, error) {
	if f.createFn != nil {
		if err := f.createFn(in); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	r := &domain.AutomationRule{
		ID:            fmt.Sprintf("r%d", f.next),
		Name:          in.Name,
		ResourceType:  in.ResourceType,
		TriggerType:   in.TriggerType,
		ExecutionType: in.ExecutionType,
		TemplateKey:   in.TemplateKey,
		IsActive:      in.IsActive,
		Version:       1,
	}
	f.rules[r.ID] = r
	cp := *r
	return &cp, nil
}

func (f *fakeRules) Update(_ context.Context, id string, version int64, in rule.Input) (*domain.AutomationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, rule.ErrNotFound
	}
	if r.Version != version {
		return nil, rule.ErrVersionConflict
	}
	r.Name = in.Name
	r.Version++
	cp := *r
	return &cp, nil
}

func (f *fakeRules) SetActive(_ context.Context, id string, active bool) (*domain.AutomationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, rule.ErrNotFound
	}
	r.IsActive = active
	r.Version++
	cp := *r
	return &cp, nil
}

func (f *fakeRules) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return rule.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

type fakeEvents struct {
	got domain.EventContext
	out *automation.EventOutcome
	err error
}

func (f *fakeEvents) HandleEvent(_ context.Context, ev domain.EventContext) (*automation.EventOutcome, error) {
	f.got = ev
	return f.out, f.err
}

type fakeDeliveries struct {
	day   time.Time
	limit int
	items []storage.Delivery
	err   error
}

func (f *fakeDeliveries) Recent(_ context.Context, day time.Time, limit int) ([]storage.Delivery, error) {
	f.day, f.limit = day, limit
	return f.items, f.err
}

type testServer struct {
	handler    http.Handler
	rules      *fakeRules
	events     *fakeEvents
	deliveries *fakeDeliveries
}

func newTestServer(t *testing.T, withAudit bool) *testServer {
	t.Helper()
	ts := &testServer{
		rules:      newFakeRules(),
		events:     &fakeEvents{out: &automation.EventOutcome{}},
		deliveries: &fakeDeliveries{},
	}
	var reader DeliveryReader
	if withAudit {
		reader = ts.deliveries
	}
	h := NewHandlers(ts.rules, ts.events, reader)
	h.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	ts.handler = SetupRoutes(h, nil, RouterOptions{})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var e httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestRules_CRUD(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/rules", rule.Input{
		Name:          "Shipment created",
		ResourceType:  domain.ResourceShipment,
		TriggerType:   domain.TriggerShipmentCreated,
		ExecutionType: domain.ExecutionEventBased,
		TemplateKey:   "shipment-created",
		IsActive:      true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.AutomationRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "r1", created.ID)
	assert.Equal(t, int64(1), created.Version)

	w = ts.do(t, http.MethodGet, "/api/rules/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPut, "/api/rules/r1", map[string]interface{}{"version": 1, "name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated domain.AutomationRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, int64(2), updated.Version)

	w = ts.do(t, http.MethodPost, "/api/rules/r1/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var toggled domain.AutomationRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &toggled))
	assert.False(t, toggled.IsActive)

	w = ts.do(t, http.MethodPost, "/api/rules/r1/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/rules/r1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/rules/r1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRules_List(t *testing.T) {
	ts := newTestServer(t, false)
	ts.rules.rules["a"] = &domain.AutomationRule{ID: "a", ResourceType: domain.ResourceFinance}
	ts.rules.rules["b"] = &domain.AutomationRule{ID: "b", ResourceType: domain.ResourceShipment}

	w := ts.do(t, http.MethodGet, "/api/rules?resource_type=Finance&execution_type=Scheduled&active=true&limit=10&offset=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Rules []domain.AutomationRule `json:"rules"`
		Count int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "a", body.Rules[0].ID)
	assert.Equal(t, rule.ListFilter{
		ResourceType:  domain.ResourceFinance,
		ExecutionType: domain.ExecutionScheduled,
		ActiveOnly:    true,
		Limit:         10,
		Offset:        5,
	}, ts.rules.filter)

	w = ts.do(t, http.MethodGet, "/api/rules?resource_type=Customer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rules":[]`)

	w = ts.do(t, http.MethodGet, "/api/rules?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "limit", decodeError(t, w).Field)
}

func TestRules_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantField string
	}{
		{"rule validation", &rule.ValidationError{Field: "template_key", Err: rule.ErrTemplateKeyRequired}, http.StatusBadRequest, "template_key"},
		{"schedule validation", &schedule.ValidationError{Field: "weekly_days", Err: schedule.ErrWeeklyDaysRequired}, http.StatusBadRequest, "weekly_days"},
		{"wrapped validation", fmt.Errorf("create: %w", &rule.ValidationError{Field: "name", Err: rule.ErrNameRequired}), http.StatusBadRequest, "name"},
		{"not found", rule.ErrNotFound, http.StatusNotFound, ""},
		{"conflict", rule.ErrVersionConflict, http.StatusConflict, ""},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			ts.rules.createFn = func(rule.Input) error { return tt.err }

			w := ts.do(t, http.MethodPost, "/api/rules", rule.Input{Name: "x"})
			require.Equal(t, tt.wantCode, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, tt.wantField, e.Field)
			if tt.wantCode == http.StatusInternalServerError {
				assert.NotContains(t, e.Error, "connection reset")
			}
		})
	}
}

func TestRules_UpdateRequiresVersion(t *testing.T) {
	ts := newTestServer(t, false)
	ts.rules.rules["r1"] = &domain.AutomationRule{ID: "r1", Version: 3}

	w := ts.do(t, http.MethodPut, "/api/rules/r1", map[string]interface{}{"name": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "version", decodeError(t, w).Field)

	w = ts.do(t, http.MethodPut, "/api/rules/r1", map[string]interface{}{"version": 2, "name": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRules_RejectsBadJSON(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/rules", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "request body is empty", decodeError(t, w).Error)

	w = ts.do(t, http.MethodPost, "/api/rules", `{"name":"x","unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent(t *testing.T) {
	ts := newTestServer(t, false)
	ts.events.out = &automation.EventOutcome{MatchedRules: 2, Dispatches: 2, Sent: 3}

	w := ts.do(t, http.MethodPost, "/api/events", domain.EventContext{
		ResourceType: domain.ResourceShipment,
		TriggerType:  domain.TriggerShipmentCreated,
		TemplateKey:  "shipment-created",
		Subject:      "Shipment SH-1 created",
		Placeholders: map[string]string{"Title": "SH-1"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var out automation.EventOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, *ts.events.out, out)
	assert.Equal(t, "SH-1", ts.events.got.Placeholders["Title"])
}

func TestHandleEvent_ValidationErrors(t *testing.T) {
	tests := []struct {
		err   error
		field string
	}{
		{automation.ErrResourceTypeRequired, "resource_type"},
		{automation.ErrTriggerTypeRequired, "trigger_type"},
		{automation.ErrTemplateKeyRequired, "template_key"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			ts := newTestServer(t, false)
			ts.events.err = tt.err

			w := ts.do(t, http.MethodPost, "/api/events", domain.EventContext{})
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.field, decodeError(t, w).Field)
		})
	}
}

func TestCompileSchedule(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/schedules/compile", map[string]interface{}{
		"schedule": schedule.Schedule{
			Frequency:  schedule.Weekly,
			Time:       schedule.TimeOfDay{Hour: 9, Minute: 30},
			WeeklyDays: []time.Weekday{time.Monday, time.Wednesday},
		},
		"time_zone_id": "Europe/Berlin",
		"preview":      2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got scheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "30 9 * * 1,3", got.CronExpression)
	assert.Equal(t, "Europe/Berlin", got.TimeZoneID)
	require.Len(t, got.NextFire, 2)
	// 2026-03-02 is a Monday; 10:00 UTC is already past 09:30 Berlin time
	assert.True(t, got.NextFire[0].Equal(time.Date(2026, 3, 4, 8, 30, 0, 0, time.UTC)), got.NextFire[0])
	assert.True(t, got.NextFire[1].Equal(time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC)), got.NextFire[1])
}

func TestCompileSchedule_ClockTime(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/schedules/compile", map[string]interface{}{
		"schedule": map[string]interface{}{"frequency": "Daily", "time": "06:45"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got scheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "45 6 * * *", got.CronExpression)

	w = ts.do(t, http.MethodPost, "/api/schedules/compile", map[string]interface{}{
		"schedule": map[string]interface{}{"frequency": "Daily", "time": "6pm"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompileSchedule_Errors(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/schedules/compile", map[string]interface{}{
		"schedule": schedule.Schedule{Frequency: schedule.Weekly, Time: schedule.TimeOfDay{Hour: 9}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "weekly_days", decodeError(t, w).Field)

	w = ts.do(t, http.MethodPost, "/api/schedules/compile", map[string]interface{}{
		"schedule":     schedule.Schedule{Frequency: schedule.Daily, Time: schedule.TimeOfDay{Hour: 9}},
		"time_zone_id": "Mars/Olympus",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "time_zone_id", decodeError(t, w).Field)
}

func TestDecompileSchedule(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/schedules/decompile", map[string]string{"cron_expression": " 0 8 15 * * "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got scheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Schedule)
	assert.Equal(t, schedule.Monthly, got.Schedule.Frequency)
	assert.Equal(t, 15, got.Schedule.MonthlyDay)
	assert.Equal(t, "UTC", got.TimeZoneID)
	require.Len(t, got.NextFire, defaultPreview)
	assert.True(t, got.NextFire[0].Equal(time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)))

	w = ts.do(t, http.MethodPost, "/api/schedules/decompile", map[string]string{"cron_expression": "*/5 * * * *"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cron_expression", decodeError(t, w).Field)
}

func TestListDeliveries(t *testing.T) {
	ts := newTestServer(t, true)
	ts.deliveries.items = []storage.Delivery{{ID: "d1", Recipient: "a***@example.com", Subject: "Hi", Status: storage.StatusSent}}

	w := ts.do(t, http.MethodGet, "/api/deliveries?day=2026-03-01&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ts.deliveries.day)
	assert.Equal(t, 10, ts.deliveries.limit)
	assert.Contains(t, w.Body.String(), `"day":"2026-03-01"`)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = ts.do(t, http.MethodGet, "/api/deliveries?limit=100000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxDeliveries, ts.deliveries.limit)
	assert.Contains(t, w.Body.String(), `"day":"2026-03-02"`)

	w = ts.do(t, http.MethodGet, "/api/deliveries?day=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "day", decodeError(t, w).Field)

	ts.deliveries.err = errors.New("throttled")
	w = ts.do(t, http.MethodGet, "/api/deliveries", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListDeliveries_NotConfigured(t *testing.T) {
	ts := newTestServer(t, false)
	w := ts.do(t, http.MethodGet, "/api/deliveries", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	h := SetupRoutes(NewHandlers(newFakeRules(), &fakeEvents{}, nil), nil, RouterOptions{AllowedOrigins: []string{"https://ops.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/rules", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
