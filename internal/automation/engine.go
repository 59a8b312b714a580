// Package automation is the rule engine. It has two entry points: HandleEvent
// for domain events raised by other subsystems, and ExecuteScheduledRule for
// the external scheduler. Both load their own snapshot of the rules they
// need, so they may run concurrently.
//
// The engine owns no timers. Wall-clock time comes from an injectable clock.
package automation

import (
	"sync"
	"time"

	"github.com/ignite/notify-engine/internal/pkg/logger"
)

var log = logger.Component("automation")

// Engine matches events and schedule firings to rules and dispatches the
// resulting notifications.
type Engine struct {
	store      RuleStore
	dispatcher Dispatcher
	builders   PlaceholderBuilder
	now        func() time.Time

	mu        sync.Mutex
	lastRunAt time.Time
	healthy   bool
}

// NewEngine creates an engine reading rules from store, building scheduled
// placeholders with builders and delivering through dispatcher.
func NewEngine(store RuleStore, dispatcher Dispatcher, builders PlaceholderBuilder) *Engine {
	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		builders:   builders,
		now:        time.Now,
		healthy:    true,
	}
}

// SetClock replaces the wall clock. Tests use it to pin "now".
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// IsHealthy reports whether the last rule lookup succeeded.
func (e *Engine) IsHealthy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.healthy
}

// LastRunAt is when the engine last handled an event or a firing.
func (e *Engine) LastRunAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRunAt
}

func (e *Engine) markRun(lookupOK bool) {
	e.mu.Lock()
	e.lastRunAt = e.now()
	e.healthy = lookupOK
	e.mu.Unlock()
}
