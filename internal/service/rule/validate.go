package rule

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/schedule"
)

// Validate checks r before it is persisted. The returned error is a
// *ValidationError naming the offending field.
func Validate(r *domain.AutomationRule) error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name", ErrNameRequired)
	}
	if strings.TrimSpace(string(r.ResourceType)) == "" {
		return invalid("resource_type", ErrResourceTypeRequired)
	}
	if strings.TrimSpace(string(r.TriggerType)) == "" {
		return invalid("trigger_type", ErrTriggerTypeRequired)
	}
	if strings.TrimSpace(r.TemplateKey) == "" {
		return invalid("template_key", ErrTemplateKeyRequired)
	}

	switch r.ExecutionType {
	case domain.ExecutionEventBased:
	case domain.ExecutionScheduled:
		if strings.TrimSpace(r.CronExpression) == "" {
			return invalid("cron_expression", ErrCronExpressionRequired)
		}
		if strings.TrimSpace(r.TimeZoneID) == "" {
			return invalid("time_zone_id", ErrTimeZoneRequired)
		}
		if err := schedule.Validate(r.CronExpression); err != nil {
			return invalid("cron_expression", fmt.Errorf("%w: %v", ErrInvalidCronExpression, err))
		}
		if _, err := time.LoadLocation(r.TimeZoneID); err != nil {
			return invalid("time_zone_id", ErrInvalidTimeZone)
		}
	default:
		return invalid("execution_type", ErrInvalidExecutionType)
	}

	if len(r.Recipients) == 0 {
		return invalid("recipients", ErrRecipientsRequired)
	}
	for i, rc := range r.Recipients {
		if strings.TrimSpace(rc.Target()) == "" {
			return invalid(fmt.Sprintf("recipients[%d]", i), ErrInvalidRecipient)
		}
	}
	return nil
}
