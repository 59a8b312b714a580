package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/service/dispatch"
	"github.com/ignite/notify-engine/internal/service/placeholder"
)

// EventOutcome summarizes what HandleEvent did.
type EventOutcome struct {
	MatchedRules int  `json:"matched_rules"`
	Fallback     bool `json:"fallback"`
	Dispatches   int  `json:"dispatches"`
	Failed       int  `json:"failed"`
	Sent         int  `json:"sent"`
	SendFailures int  `json:"send_failures"`
}

// HandleEvent finds the active event rules for ev and dispatches one
// notification per rule. A failing dispatch is logged and counted without
// stopping the others. When nothing matches and ev.ForceSendWhenNoRule is
// set, a single notification is sent with the event's own template and
// recipients. The error is non-nil only for invalid events and failed rule
// lookups.
func (e *Engine) HandleEvent(ctx context.Context, ev domain.EventContext) (*EventOutcome, error) {
	if strings.TrimSpace(string(ev.ResourceType)) == "" {
		return nil, ErrResourceTypeRequired
	}
	if strings.TrimSpace(string(ev.TriggerType)) == "" {
		return nil, ErrTriggerTypeRequired
	}
	if ev.RelatedEntityID != nil && strings.TrimSpace(*ev.RelatedEntityID) == "" {
		ev.RelatedEntityID = nil
	}

	rules, err := e.store.ListActiveEventRules(ctx, ev.ResourceType, ev.TriggerType, ev.RelatedEntityID)
	e.markRun(err == nil)
	if err != nil {
		return nil, fmt.Errorf("list event rules for %s/%s: %w", ev.ResourceType, ev.TriggerType, err)
	}

	out := &EventOutcome{}
	for i := range rules {
		r := &rules[i]
		if !matches(r, ev) {
			continue
		}
		out.MatchedRules++
		subject := ev.Subject
		if strings.TrimSpace(subject) == "" {
			subject = r.Name
		}
		e.dispatch(ctx, out, r.ID, dispatch.Request{
			ResourceType:      ev.ResourceType,
			TriggerType:       ev.TriggerType,
			TemplateKey:       r.TemplateKey,
			Subject:           subject,
			Placeholders:      ev.Placeholders,
			RuleRecipients:    r.Recipients,
			AdditionalUserIDs: ev.AdditionalUserIDs,
			AdditionalEmails:  ev.AdditionalEmails,
		})
	}

	if out.MatchedRules > 0 {
		return out, nil
	}
	if !ev.ForceSendWhenNoRule {
		log.Debug("no rule matched event", "resource_type", ev.ResourceType, "trigger_type", ev.TriggerType)
		return out, nil
	}
	if strings.TrimSpace(ev.TemplateKey) == "" {
		return nil, ErrTemplateKeyRequired
	}

	out.Fallback = true
	subject := ev.Subject
	if strings.TrimSpace(subject) == "" {
		subject = placeholder.Normalize(ev.Placeholders)[placeholder.KeyTitle]
	}
	e.dispatch(ctx, out, "", dispatch.Request{
		ResourceType:      ev.ResourceType,
		TriggerType:       ev.TriggerType,
		TemplateKey:       ev.TemplateKey,
		Subject:           subject,
		Placeholders:      ev.Placeholders,
		AdditionalUserIDs: ev.AdditionalUserIDs,
		AdditionalEmails:  ev.AdditionalEmails,
	})
	return out, nil
}

func (e *Engine) dispatch(ctx context.Context, out *EventOutcome, ruleID string, req dispatch.Request) {
	out.Dispatches++
	res, err := e.dispatcher.Dispatch(ctx, req)
	if err != nil {
		out.Failed++
		log.Error("event dispatch failed",
			"rule_id", ruleID,
			"resource_type", req.ResourceType,
			"trigger_type", req.TriggerType,
			"error", err)
		return
	}
	out.Sent += res.Sent
	out.SendFailures += len(res.Failed)
}

// matches re-checks what the store is asked to filter on. A rule without a
// related entity matches every event of its pair, scoped or not.
func matches(r *domain.AutomationRule, ev domain.EventContext) bool {
	if !r.IsActive || r.ExecutionType != domain.ExecutionEventBased {
		return false
	}
	if r.ResourceType != ev.ResourceType || r.TriggerType != ev.TriggerType {
		return false
	}
	if r.RelatedEntityID == nil {
		return true
	}
	return ev.RelatedEntityID != nil && *r.RelatedEntityID == *ev.RelatedEntityID
}
