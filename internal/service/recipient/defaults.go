package recipient

import "github.com/ignite/notify-engine/internal/domain"

// defaultAllowed is the opt-in assumed for a user with no stored value for a
// resource type. Customer notifications are opt-in only.
var defaultAllowed = map[domain.ResourceType]bool{
	domain.ResourceShipment:  true,
	domain.ResourceFinance:   true,
	domain.ResourceWarehouse: true,
	domain.ResourceTask:      true,
	domain.ResourceCustomer:  false,
}

// DefaultAllowed returns the default opt-in for rt. Unrecognized resource
// types are allowed.
func DefaultAllowed(rt domain.ResourceType) bool {
	if allowed, ok := defaultAllowed[rt]; ok {
		return allowed
	}
	return true
}

// Allows returns the effective opt-in: the stored value when present,
// otherwise the resource-type default.
func Allows(pref *domain.NotificationPreference, rt domain.ResourceType) bool {
	if pref != nil {
		if allowed, ok := pref.Lookup(rt); ok {
			return allowed
		}
	}
	return DefaultAllowed(rt)
}
