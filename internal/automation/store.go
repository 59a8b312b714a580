package automation

import (
	"context"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/service/dispatch"
	"github.com/ignite/notify-engine/internal/service/placeholder"
)

// RuleStore is the read side of the rule repository used by the engine.
// Implementations must be safe for concurrent use.
type RuleStore interface {
	// Get returns a rule with its recipients, or an error wrapping
	// rule.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.AutomationRule, error)

	// ListActiveEventRules returns the active EventBased rules for the
	// pair whose related entity is unset or equal to relatedEntityID.
	// With a nil relatedEntityID only unscoped rules qualify.
	ListActiveEventRules(ctx context.Context, rt domain.ResourceType, tt domain.TriggerType, relatedEntityID *string) ([]domain.AutomationRule, error)
}

// Dispatcher delivers one notification. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// PlaceholderBuilder builds the placeholders of a scheduled firing.
// *placeholder.Registry satisfies it.
type PlaceholderBuilder interface {
	Build(ctx context.Context, in placeholder.BuildInput) (map[string]string, error)
}
