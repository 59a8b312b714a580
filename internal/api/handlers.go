// Package api exposes the rule authoring, event intake, schedule preview and
// delivery audit endpoints over chi.
package api

import (
	"context"
	"time"

	"github.com/ignite/notify-engine/internal/automation"
	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/service/rule"
	"github.com/ignite/notify-engine/internal/storage"
)

// RuleService is the authoring surface the handlers call. *rule.Service
// satisfies it.
type RuleService interface {
	Get(ctx context.Context, id string) (*domain.AutomationRule, error)
	List(ctx context.Context, f rule.ListFilter) ([]domain.AutomationRule, error)
	Create(ctx context.Context, in rule.Input) (*domain.AutomationRule, error)
	Update(ctx context.Context, id string, version int64, in rule.Input) (*domain.AutomationRule, error)
	SetActive(ctx context.Context, id string, active bool) (*domain.AutomationRule, error)
	Delete(ctx context.Context, id string) error
}

// EventHandler accepts domain events. *automation.Engine satisfies it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev domain.EventContext) (*automation.EventOutcome, error)
}

// DeliveryReader lists audited deliveries. *storage.DeliveryLog satisfies it.
type DeliveryReader interface {
	Recent(ctx context.Context, day time.Time, limit int) ([]storage.Delivery, error)
}

// Handlers holds the dependencies of every endpoint. Deliveries may be nil
// when no audit log is configured.
type Handlers struct {
	Rules      RuleService
	Events     EventHandler
	Deliveries DeliveryReader

	now func() time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(rules RuleService, events EventHandler, deliveries DeliveryReader) *Handlers {
	return &Handlers{Rules: rules, Events: events, Deliveries: deliveries, now: time.Now}
}
