package recipient

import (
	"context"

	"github.com/ignite/notify-engine/internal/domain"
)

// Directory looks up users and role membership.
type Directory interface {
	// EmailForUser returns the user's address, or "" when none is on file.
	EmailForUser(ctx context.Context, userID string) (string, error)

	// UsersInRole returns the members of a role. Members may lack an email.
	UsersInRole(ctx context.Context, roleName string) ([]domain.DirectoryUser, error)
}

// PreferenceStore loads stored notification opt-ins.
type PreferenceStore interface {
	// LoadPreferences returns the stored preference rows for the given users
	// in one batch. Users without a row are simply absent from the map.
	LoadPreferences(ctx context.Context, userIDs []string) (map[string]domain.NotificationPreference, error)
}
