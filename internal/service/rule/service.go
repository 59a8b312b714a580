package rule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/pkg/logger"
	"github.com/ignite/notify-engine/internal/schedule"
)

var log = logger.Component("rule")

// Service implements rule authoring. All public methods are safe for
// concurrent use if the repository and scheduler are.
type Service struct {
	repo      Repository
	scheduler Scheduler
	now       func() time.Time
}

// NewService creates a rule service. scheduler may be nil when no cron
// runner is deployed; scheduled rules are then stored but never fire.
func NewService(repo Repository, scheduler Scheduler) *Service {
	return &Service{repo: repo, scheduler: scheduler, now: time.Now}
}

// Input is the full field set of a rule as supplied by an author. Updates
// replace every field and the whole recipient list.
type Input struct {
	Name            string               `json:"name"`
	ResourceType    domain.ResourceType  `json:"resource_type"`
	TriggerType     domain.TriggerType   `json:"trigger_type"`
	ExecutionType   domain.ExecutionType `json:"execution_type"`
	TemplateKey     string               `json:"template_key"`
	CronExpression  string               `json:"cron_expression,omitempty"`
	Schedule        *schedule.Schedule   `json:"schedule,omitempty"`
	TimeZoneID      string               `json:"time_zone_id,omitempty"`
	RelatedEntityID *string              `json:"related_entity_id,omitempty"`
	IsActive        bool                 `json:"is_active"`
	Metadata        string               `json:"metadata,omitempty"`
	Recipients      []RecipientInput     `json:"recipients"`
}

// RecipientInput is one addressing target. Only the field matching Type is
// kept.
type RecipientInput struct {
	Type         domain.RecipientType `json:"recipient_type"`
	UserID       string               `json:"user_id,omitempty"`
	EmailAddress string               `json:"email_address,omitempty"`
	RoleName     string               `json:"role_name,omitempty"`
}

// build turns in into a rule. A structured schedule is compiled when no
// cron expression was given.
func build(id string, in Input) (*domain.AutomationRule, error) {
	r := &domain.AutomationRule{
		ID:              id,
		Name:            strings.TrimSpace(in.Name),
		ResourceType:    in.ResourceType,
		TriggerType:     in.TriggerType,
		ExecutionType:   in.ExecutionType,
		TemplateKey:     strings.TrimSpace(in.TemplateKey),
		CronExpression:  strings.TrimSpace(in.CronExpression),
		TimeZoneID:      strings.TrimSpace(in.TimeZoneID),
		RelatedEntityID: in.RelatedEntityID,
		IsActive:        in.IsActive,
		Metadata:        in.Metadata,
	}
	if r.RelatedEntityID != nil && strings.TrimSpace(*r.RelatedEntityID) == "" {
		r.RelatedEntityID = nil
	}
	if r.ExecutionType == domain.ExecutionScheduled && r.CronExpression == "" && in.Schedule != nil {
		expr, err := schedule.Compile(*in.Schedule)
		if err != nil {
			return nil, err
		}
		r.CronExpression = expr
	}
	if r.ExecutionType == domain.ExecutionEventBased {
		r.CronExpression, r.TimeZoneID = "", ""
	}

	for _, ri := range in.Recipients {
		rc := domain.AutomationRuleRecipient{
			ID:            uuid.New().String(),
			RuleID:        id,
			RecipientType: ri.Type,
			UserID:        strings.TrimSpace(ri.UserID),
			EmailAddress:  strings.TrimSpace(ri.EmailAddress),
			RoleName:      strings.TrimSpace(ri.RoleName),
		}
		r.Recipients = append(r.Recipients, rc.Normalized())
	}
	return r, Validate(r)
}

// Get returns a single rule.
func (s *Service) Get(ctx context.Context, id string) (*domain.AutomationRule, error) {
	return s.repo.Get(ctx, id)
}

// List returns rules matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.AutomationRule, error) {
	return s.repo.List(ctx, f)
}

// ListActiveByExecutionType returns every active rule of one execution type.
func (s *Service) ListActiveByExecutionType(ctx context.Context, et domain.ExecutionType) ([]domain.AutomationRule, error) {
	return s.repo.ListActiveByExecutionType(ctx, et)
}

// Create validates and persists a new rule, then registers it with the
// scheduler if it is active and scheduled.
func (s *Service) Create(ctx context.Context, in Input) (*domain.AutomationRule, error) {
	r, err := build(uuid.New().String(), in)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	r.CreatedAt, r.UpdatedAt, r.Version = now, now, 1

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	if err := s.register(ctx, r); err != nil {
		return nil, err
	}
	log.Info("rule created", "rule_id", r.ID, "execution_type", r.ExecutionType, "active", r.IsActive)
	return r, nil
}

// Update replaces the rule's fields and recipients. version must equal the
// stored version; otherwise ErrVersionConflict is returned.
func (s *Service) Update(ctx context.Context, id string, version int64, in Input) (*domain.AutomationRule, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := build(id, in)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = current.CreatedAt
	r.UpdatedAt = s.now().UTC()
	r.Version = version

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	if err := s.reregister(ctx, r); err != nil {
		return nil, err
	}
	log.Info("rule updated", "rule_id", r.ID, "version", r.Version)
	return r, nil
}

// SetActive toggles a rule and brings its scheduler registration in line.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*domain.AutomationRule, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reregister(ctx, r); err != nil {
		return nil, err
	}
	log.Info("rule toggled", "rule_id", id, "active", active)
	return r, nil
}

// Delete unregisters and removes a rule with its recipients.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.unregister(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Info("rule deleted", "rule_id", id)
	return nil
}

// SyncSchedules registers every active scheduled rule and, when the
// scheduler can list its registrations, unregisters the ones that no longer
// belong to an active scheduled rule. It returns the number of rules
// registered.
func (s *Service) SyncSchedules(ctx context.Context) (int, error) {
	if s.scheduler == nil {
		return 0, nil
	}
	rules, err := s.repo.ListActiveByExecutionType(ctx, domain.ExecutionScheduled)
	if err != nil {
		return 0, fmt.Errorf("list scheduled rules: %w", err)
	}

	keep := make(map[string]bool, len(rules))
	var (
		errs       []error
		registered int
	)
	for i := range rules {
		r := &rules[i]
		keep[r.ID] = true
		if err := s.scheduler.Schedule(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("schedule rule %s: %w", r.ID, err))
			continue
		}
		registered++
	}

	if lister, ok := s.scheduler.(ScheduleLister); ok {
		ids, err := lister.ScheduledRuleIDs(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("list registrations: %w", err))
		}
		for _, id := range ids {
			if keep[id] {
				continue
			}
			if err := s.scheduler.Unschedule(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("unschedule rule %s: %w", id, err))
				continue
			}
			log.Info("stale schedule removed", "rule_id", id)
		}
	}
	return registered, errors.Join(errs...)
}

func (s *Service) register(ctx context.Context, r *domain.AutomationRule) error {
	if s.scheduler == nil || !r.NeedsSchedule() {
		return nil
	}
	if err := s.scheduler.Schedule(ctx, r); err != nil {
		return fmt.Errorf("schedule rule %s: %w", r.ID, err)
	}
	return nil
}

func (s *Service) unregister(ctx context.Context, id string) error {
	if s.scheduler == nil {
		return nil
	}
	if err := s.scheduler.Unschedule(ctx, id); err != nil {
		return fmt.Errorf("unschedule rule %s: %w", id, err)
	}
	return nil
}

// reregister tears the registration down and sets it up again if the rule
// still needs one.
func (s *Service) reregister(ctx context.Context, r *domain.AutomationRule) error {
	if err := s.unregister(ctx, r.ID); err != nil {
		return err
	}
	return s.register(ctx, r)
}
