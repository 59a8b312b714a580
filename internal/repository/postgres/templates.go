package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/notify-engine/internal/template"
)

// TemplateRepo implements template.Source over notification_templates.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template source.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

func (r *TemplateRepo) Load(ctx context.Context, key string) (string, error) {
	var body string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM notification_templates WHERE template_key = $1 AND is_active`, key,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return "", template.ErrTemplateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load template: %w", err)
	}
	return body, nil
}
