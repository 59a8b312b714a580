package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/service/dispatch"
	"github.com/ignite/notify-engine/internal/service/placeholder"
	"github.com/ignite/notify-engine/internal/service/rule"
)

// ExecuteScheduledRule is called by the scheduler at each fire time of a
// rule. A rule that no longer exists or is inactive is skipped without
// error; scheduler registrations may lag behind authoring changes.
func (e *Engine) ExecuteScheduledRule(ctx context.Context, ruleID string) error {
	r, err := e.store.Get(ctx, ruleID)
	if errors.Is(err, rule.ErrNotFound) {
		e.markRun(true)
		log.Warn("scheduled rule no longer exists", "rule_id", ruleID)
		return nil
	}
	e.markRun(err == nil)
	if err != nil {
		return fmt.Errorf("load rule %s: %w", ruleID, err)
	}
	if !r.IsActive {
		log.Debug("scheduled rule is inactive", "rule_id", ruleID)
		return nil
	}
	if !r.IsScheduled() {
		log.Warn("rule is not scheduled", "rule_id", ruleID, "execution_type", r.ExecutionType)
		return nil
	}

	loc := ruleLocation(r)
	vars, err := e.builders.Build(ctx, placeholder.BuildInput{Rule: r, Now: e.now(), Location: loc})
	if err != nil {
		return fmt.Errorf("build placeholders for rule %s: %w", ruleID, err)
	}

	res, err := e.dispatcher.Dispatch(ctx, dispatch.Request{
		ResourceType:   r.ResourceType,
		TriggerType:    r.TriggerType,
		TemplateKey:    r.TemplateKey,
		Subject:        r.Name,
		Placeholders:   vars,
		RuleRecipients: r.Recipients,
	})
	if err != nil {
		return fmt.Errorf("dispatch rule %s: %w", ruleID, err)
	}
	log.Info("scheduled rule executed",
		"rule_id", ruleID,
		"sent", res.Sent,
		"failed", len(res.Failed),
		"skipped", len(res.Skipped))
	return nil
}

func ruleLocation(r *domain.AutomationRule) *time.Location {
	if r.TimeZoneID == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.TimeZoneID)
	if err != nil {
		log.Warn("unknown rule time zone, using UTC", "rule_id", r.ID, "time_zone", r.TimeZoneID)
		return time.UTC
	}
	return loc
}
