// Package scheduler is the cron collaborator of the rule service. The
// Registry keeps the set of scheduled rules in a Redis hash shared by all
// replicas; the Runner turns that set into cron jobs and calls the engine's
// scheduled entry point when they fire.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/pkg/logger"
	"github.com/ignite/notify-engine/internal/schedule"
)

// DefaultRegistryKey is the Redis hash holding one entry per scheduled rule.
const DefaultRegistryKey = "notify:schedules"

var log = logger.Component("scheduler")

// Entry is one registered schedule.
type Entry struct {
	RuleID         string    `json:"rule_id"`
	CronExpression string    `json:"cron"`
	TimeZoneID     string    `json:"tz"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Spec is the expression handed to the cron library, carrying the zone.
func (e Entry) Spec() string {
	return "CRON_TZ=" + e.TimeZoneID + " " + e.CronExpression
}

// Registry implements rule.Scheduler and rule.ScheduleLister on Redis.
type Registry struct {
	client redis.Cmdable
	key    string
	now    func() time.Time

	mu       sync.Mutex
	onChange []func()
}

// NewRegistry creates a registry on key; an empty key uses
// DefaultRegistryKey.
func NewRegistry(client redis.Cmdable, key string) *Registry {
	if key == "" {
		key = DefaultRegistryKey
	}
	return &Registry{client: client, key: key, now: time.Now}
}

// OnChange registers fn to be called after every successful change.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = append(r.onChange, fn)
	r.mu.Unlock()
}

func (r *Registry) changed() {
	r.mu.Lock()
	fns := append([]func(){}, r.onChange...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Schedule registers or replaces the schedule of rule.
func (r *Registry) Schedule(ctx context.Context, rule *domain.AutomationRule) error {
	if !rule.IsScheduled() {
		return fmt.Errorf("rule %s is not a scheduled rule", rule.ID)
	}
	if err := schedule.Validate(rule.CronExpression); err != nil {
		return err
	}
	if _, err := time.LoadLocation(rule.TimeZoneID); err != nil {
		return fmt.Errorf("rule %s: load time zone %q: %w", rule.ID, rule.TimeZoneID, err)
	}

	data, err := json.Marshal(Entry{
		RuleID:         rule.ID,
		CronExpression: rule.CronExpression,
		TimeZoneID:     rule.TimeZoneID,
		UpdatedAt:      r.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key, rule.ID, data).Err(); err != nil {
		return fmt.Errorf("register schedule %s: %w", rule.ID, err)
	}
	log.Info("schedule registered", "rule_id", rule.ID, "cron", rule.CronExpression, "tz", rule.TimeZoneID)
	r.changed()
	return nil
}

// Unschedule removes the rule's schedule. Unknown ids are not an error.
func (r *Registry) Unschedule(ctx context.Context, ruleID string) error {
	n, err := r.client.HDel(ctx, r.key, ruleID).Result()
	if err != nil {
		return fmt.Errorf("unregister schedule %s: %w", ruleID, err)
	}
	if n > 0 {
		log.Info("schedule removed", "rule_id", ruleID)
		r.changed()
	}
	return nil
}

// ScheduledRuleIDs returns the registered rule ids in sorted order.
func (r *Registry) ScheduledRuleIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.HKeys(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Entries returns every registered schedule. Entries that cannot be decoded
// are logged and skipped.
func (r *Registry) Entries(ctx context.Context) (map[string]Entry, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	out := make(map[string]Entry, len(raw))
	for id, v := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			log.Warn("skipping corrupt schedule entry", "rule_id", id, "error", err)
			continue
		}
		e.RuleID = id
		out[id] = e
	}
	return out, nil
}
