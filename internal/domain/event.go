package domain

// EventContext is produced by a calling subsystem when a domain event occurs.
// It is never persisted.
type EventContext struct {
	ResourceType        ResourceType      `json:"resource_type"`
	TriggerType         TriggerType       `json:"trigger_type"`
	RelatedEntityID     *string           `json:"related_entity_id,omitempty"`
	TemplateKey         string            `json:"template_key"`
	Subject             string            `json:"subject"`
	Placeholders        map[string]string `json:"placeholders,omitempty"`
	AdditionalUserIDs   []string          `json:"additional_user_ids,omitempty"`
	AdditionalEmails    []string          `json:"additional_emails,omitempty"`
	ForceSendWhenNoRule bool              `json:"force_send_when_no_rule"`
}
