package rule

import (
	"context"

	"github.com/ignite/notify-engine/internal/domain"
)

// Repository defines the data access contract for automation rules.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a rule with its recipients. Returns ErrNotFound if it
	// doesn't exist.
	Get(ctx context.Context, id string) (*domain.AutomationRule, error)

	// List returns rules matching the filter, newest first. Recipients are
	// loaded.
	List(ctx context.Context, filter ListFilter) ([]domain.AutomationRule, error)

	// ListActiveByExecutionType returns every active rule of one execution
	// type with its recipients.
	ListActiveByExecutionType(ctx context.Context, et domain.ExecutionType) ([]domain.AutomationRule, error)

	// Create inserts the rule and its recipients in one transaction.
	Create(ctx context.Context, r *domain.AutomationRule) error

	// Update replaces the rule's fields and its whole recipient list in one
	// transaction, provided the stored version equals r.Version. On success
	// r.Version and r.UpdatedAt hold the new values. Returns ErrNotFound or
	// ErrVersionConflict.
	Update(ctx context.Context, r *domain.AutomationRule) error

	// SetActive flips is_active and bumps the version. Returns ErrNotFound.
	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes the rule and its recipients. Returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// ListFilter narrows a rule listing. Zero values do not filter.
type ListFilter struct {
	ResourceType  domain.ResourceType
	ExecutionType domain.ExecutionType
	ActiveOnly    bool
	Limit         int
	Offset        int
}

// Scheduler is the external cron collaborator. After Schedule returns, the
// scheduler invokes the engine's scheduled entry point for the rule at each
// fire time in the rule's time zone until Unschedule is called.
type Scheduler interface {
	Schedule(ctx context.Context, r *domain.AutomationRule) error
	Unschedule(ctx context.Context, ruleID string) error
}

// ScheduleLister is implemented by schedulers that can report which rules
// they currently hold. SyncSchedules uses it to drop stale registrations.
type ScheduleLister interface {
	ScheduledRuleIDs(ctx context.Context) ([]string, error)
}
