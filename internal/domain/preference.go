package domain

// DirectoryUser is a user as returned by the user/role directory. Email is
// empty when the directory has no address on file.
type DirectoryUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NotificationPreference holds a user's stored opt-ins. Allowed only carries
// resource types the user has an explicit row value for; anything missing
// falls back to the resource-type default.
type NotificationPreference struct {
	UserID  string                `json:"user_id"`
	Allowed map[ResourceType]bool `json:"allowed"`
}

// Lookup returns the stored opt-in for rt and whether one exists.
func (p NotificationPreference) Lookup(rt ResourceType) (allowed, ok bool) {
	if p.Allowed == nil {
		return false, false
	}
	allowed, ok = p.Allowed[rt]
	return allowed, ok
}
