package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/notify-engine/internal/domain"
)

// DirectoryRepo implements recipient.Directory over the users and
// user_roles tables.
type DirectoryRepo struct{ db *sql.DB }

// NewDirectoryRepo creates a Postgres-backed user directory.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

// EmailForUser returns the address of an active user, or "" when the user
// is unknown, inactive or has no address.
func (r *DirectoryRepo) EmailForUser(ctx context.Context, userID string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(email,'') FROM users WHERE id = $1 AND is_active`, userID,
	).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user email: %w", err)
	}
	return email, nil
}

// UsersInRole returns the active members of role.
func (r *DirectoryRepo) UsersInRole(ctx context.Context, role string) ([]domain.DirectoryUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, COALESCE(u.email,'')
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		WHERE ur.role_name = $1 AND u.is_active
		ORDER BY u.id
	`, role)
	if err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	defer rows.Close()

	var out []domain.DirectoryUser
	for rows.Next() {
		var u domain.DirectoryUser
		if err := rows.Scan(&u.ID, &u.Email); err != nil {
			return nil, fmt.Errorf("scan role member: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
