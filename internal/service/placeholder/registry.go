package placeholder

import (
	"context"
	"html"
	"sync"
	"time"

	"github.com/ignite/notify-engine/internal/domain"
)

// BuildInput carries everything a builder may use. Now and Location are
// passed explicitly so builders never read the wall clock themselves.
type BuildInput struct {
	Rule     *domain.AutomationRule
	Now      time.Time
	Location *time.Location
}

// Builder produces the placeholders for one firing of a scheduled rule.
type Builder func(ctx context.Context, in BuildInput) (map[string]string, error)

type builderKey struct {
	resource domain.ResourceType
	trigger  domain.TriggerType
}

// Registry maps (resource type, trigger type) pairs to builders, with a
// fallback for unregistered pairs. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[builderKey]Builder
	fallback Builder
}

// NewRegistry creates a registry whose fallback is DefaultBuilder.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[builderKey]Builder), fallback: DefaultBuilder}
}

// Register installs b for the pair, replacing any previous builder.
func (r *Registry) Register(rt domain.ResourceType, tt domain.TriggerType, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[builderKey{rt, tt}] = b
}

// Lookup returns the builder for the pair, or the fallback.
func (r *Registry) Lookup(rt domain.ResourceType, tt domain.TriggerType) Builder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.builders[builderKey{rt, tt}]; ok {
		return b
	}
	return r.fallback
}

// Build runs the builder registered for the rule's pair.
func (r *Registry) Build(ctx context.Context, in BuildInput) (map[string]string, error) {
	if in.Location == nil {
		in.Location = time.UTC
	}
	return r.Lookup(in.Rule.ResourceType, in.Rule.TriggerType)(ctx, in)
}

// DefaultBuilder carries the rule name as title and the raw metadata as
// content.
func DefaultBuilder(_ context.Context, in BuildInput) (map[string]string, error) {
	return map[string]string{
		KeyTitle:       in.Rule.Name,
		KeyDescription: "Scheduled notification",
		KeyContent:     html.EscapeString(in.Rule.Metadata),
		"RuleName":     in.Rule.Name,
		"FiredAt":      in.Now.In(in.Location).Format("2006-01-02 15:04 MST"),
	}, nil
}
