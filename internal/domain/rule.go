package domain

import "time"

// ResourceType is the business area a rule watches.
type ResourceType string

const (
	ResourceShipment  ResourceType = "Shipment"
	ResourceFinance   ResourceType = "Finance"
	ResourceTask      ResourceType = "Task"
	ResourceCustomer  ResourceType = "Customer"
	ResourceWarehouse ResourceType = "Warehouse"
)

// TriggerType names the occurrence inside a resource type that a rule reacts
// to. Values are only meaningful together with a ResourceType.
type TriggerType string

const (
	TriggerShipmentStatusChanged   TriggerType = "ShipmentStatusChanged"
	TriggerShipmentCreated         TriggerType = "ShipmentCreated"
	TriggerFinanceSummaryScheduled TriggerType = "FinanceSummaryScheduled"
	TriggerPaymentDue              TriggerType = "PaymentDue"
	TriggerTaskAssigned            TriggerType = "TaskAssigned"
	TriggerTaskOverdue             TriggerType = "TaskOverdue"
	TriggerCustomerCreated         TriggerType = "CustomerCreated"
	TriggerWarehouseLowStock       TriggerType = "WarehouseLowStock"
)

// ExecutionType selects how a rule fires.
type ExecutionType string

const (
	ExecutionEventBased ExecutionType = "EventBased"
	ExecutionScheduled  ExecutionType = "Scheduled"
)

// AutomationRule is a named notification policy. A rule exclusively owns its
// recipient list; updates replace both the field set and the list.
type AutomationRule struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	ResourceType    ResourceType              `json:"resource_type"`
	TriggerType     TriggerType               `json:"trigger_type"`
	ExecutionType   ExecutionType             `json:"execution_type"`
	TemplateKey     string                    `json:"template_key"`
	CronExpression  string                    `json:"cron_expression,omitempty"`
	TimeZoneID      string                    `json:"time_zone_id,omitempty"`
	RelatedEntityID *string                   `json:"related_entity_id,omitempty"`
	IsActive        bool                      `json:"is_active"`
	Metadata        string                    `json:"metadata,omitempty"`
	Version         int64                     `json:"version"`
	Recipients      []AutomationRuleRecipient `json:"recipients"`
	CreatedAt       time.Time                 `json:"created_at"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// IsScheduled reports whether the rule is driven by a cron schedule.
func (r *AutomationRule) IsScheduled() bool {
	return r.ExecutionType == ExecutionScheduled
}

// NeedsSchedule reports whether the rule must be registered with the
// scheduler right now.
func (r *AutomationRule) NeedsSchedule() bool {
	return r.IsActive && r.IsScheduled()
}

// RecipientType selects which addressing field of a recipient is meaningful.
type RecipientType string

const (
	RecipientCustomEmail RecipientType = "CustomEmail"
	RecipientUser        RecipientType = "User"
	RecipientRole        RecipientType = "Role"
)

// AutomationRuleRecipient is one addressing target of a rule.
type AutomationRuleRecipient struct {
	ID            string        `json:"id"`
	RuleID        string        `json:"rule_id"`
	RecipientType RecipientType `json:"recipient_type"`
	UserID        string        `json:"user_id,omitempty"`
	EmailAddress  string        `json:"email_address,omitempty"`
	RoleName      string        `json:"role_name,omitempty"`
}

// Target returns the value of the field selected by RecipientType, or ""
// for an unknown type.
func (r AutomationRuleRecipient) Target() string {
	switch r.RecipientType {
	case RecipientCustomEmail:
		return r.EmailAddress
	case RecipientUser:
		return r.UserID
	case RecipientRole:
		return r.RoleName
	}
	return ""
}

// Normalized returns a copy with only the field selected by RecipientType
// populated.
func (r AutomationRuleRecipient) Normalized() AutomationRuleRecipient {
	out := AutomationRuleRecipient{ID: r.ID, RuleID: r.RuleID, RecipientType: r.RecipientType}
	switch r.RecipientType {
	case RecipientCustomEmail:
		out.EmailAddress = r.EmailAddress
	case RecipientUser:
		out.UserID = r.UserID
	case RecipientRole:
		out.RoleName = r.RoleName
	}
	return out
}
