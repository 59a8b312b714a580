package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/service/rule"
)

// RuleRepo implements rule.Repository and automation.RuleStore against
// PostgreSQL.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed rule repository.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `
	id, name, resource_type, trigger_type, execution_type, template_key,
	COALESCE(cron_expression,''), COALESCE(time_zone_id,''), related_entity_id,
	is_active, COALESCE(metadata,''), version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(s rowScanner) (domain.AutomationRule, error) {
	var (
		r       domain.AutomationRule
		related sql.NullString
	)
	err := s.Scan(
		&r.ID, &r.Name, &r.ResourceType, &r.TriggerType, &r.ExecutionType, &r.TemplateKey,
		&r.CronExpression, &r.TimeZoneID, &related,
		&r.IsActive, &r.Metadata, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if related.Valid {
		r.RelatedEntityID = &related.String
	}
	return r, err
}

// knownID reports whether id can name a row. Rule ids are UUID columns, so
// any other string cannot exist and is not sent to Postgres.
func knownID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *RuleRepo) Get(ctx context.Context, id string) (*domain.AutomationRule, error) {
	if !knownID(id) {
		return nil, rule.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM automation_rules WHERE id = $1`, id)
	ar, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, rule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}

	rules := []domain.AutomationRule{ar}
	if err := r.attachRecipients(ctx, rules); err != nil {
		return nil, err
	}
	return &rules[0], nil
}

func (r *RuleRepo) List(ctx context.Context, f rule.ListFilter) ([]domain.AutomationRule, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ExecutionType != "" {
		add("execution_type = $%d", f.ExecutionType)
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}

	q := `SELECT ` + ruleColumns + ` FROM automation_rules`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	return r.query(ctx, "list rules", q, args...)
}

func (r *RuleRepo) ListActiveByExecutionType(ctx context.Context, et domain.ExecutionType) ([]domain.AutomationRule, error) {
	return r.query(ctx, "list active rules", `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE is_active AND execution_type = $1
		ORDER BY created_at`, et)
}

// ListActiveEventRules matches unscoped rules for every event of the pair;
// with a nil relatedEntityID the equality branch is NULL and only unscoped
// rules are returned.
func (r *RuleRepo) ListActiveEventRules(ctx context.Context, rt domain.ResourceType, tt domain.TriggerType, relatedEntityID *string) ([]domain.AutomationRule, error) {
	return r.query(ctx, "list event rules", `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE is_active
		  AND execution_type = 'EventBased'
		  AND resource_type = $1
		  AND trigger_type = $2
		  AND (related_entity_id IS NULL OR related_entity_id = $3)
		ORDER BY created_at`, rt, tt, relatedEntityID)
}

func (r *RuleRepo) query(ctx context.Context, op, q string, args ...interface{}) ([]domain.AutomationRule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.AutomationRule
	for rows.Next() {
		ar, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, ar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.attachRecipients(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachRecipients loads the recipients of every rule in one query.
func (r *RuleRepo) attachRecipients(ctx context.Context, rules []domain.AutomationRule) error {
	if len(rules) == 0 {
		return nil
	}
	ids := make([]string, len(rules))
	index := make(map[string]int, len(rules))
	for i, ar := range rules {
		ids[i] = ar.ID
		index[ar.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, rule_id, recipient_type,
		       COALESCE(user_id,''), COALESCE(email_address,''), COALESCE(role_name,'')
		FROM automation_rule_recipients
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rc domain.AutomationRuleRecipient
		if err := rows.Scan(&rc.ID, &rc.RuleID, &rc.RecipientType, &rc.UserID, &rc.EmailAddress, &rc.RoleName); err != nil {
			return fmt.Errorf("scan recipient: %w", err)
		}
		if i, ok := index[rc.RuleID]; ok {
			rules[i].Recipients = append(rules[i].Recipients, rc)
		}
	}
	return rows.Err()
}

func (r *RuleRepo) Create(ctx context.Context, ar *domain.AutomationRule) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO automation_rules
				(id, name, resource_type, trigger_type, execution_type, template_key,
				 cron_expression, time_zone_id, related_entity_id, is_active, metadata,
				 version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, ar.ID, ar.Name, ar.ResourceType, ar.TriggerType, ar.ExecutionType, ar.TemplateKey,
			nullIfEmpty(ar.CronExpression), nullIfEmpty(ar.TimeZoneID), ar.RelatedEntityID, ar.IsActive,
			nullIfEmpty(ar.Metadata), ar.Version, ar.CreatedAt, ar.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert rule: %w", err)
		}
		return insertRecipients(ctx, tx, ar)
	})
}

func (r *RuleRepo) Update(ctx context.Context, ar *domain.AutomationRule) error {
	if !knownID(ar.ID) {
		return rule.ErrNotFound
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var version int64
		err := tx.QueryRowContext(ctx, `
			UPDATE automation_rules
			SET name = $1, resource_type = $2, trigger_type = $3, execution_type = $4,
			    template_key = $5, cron_expression = $6, time_zone_id = $7,
			    related_entity_id = $8, is_active = $9, metadata = $10,
			    version = version + 1, updated_at = $11
			WHERE id = $12 AND version = $13
			RETURNING version
		`, ar.Name, ar.ResourceType, ar.TriggerType, ar.ExecutionType,
			ar.TemplateKey, nullIfEmpty(ar.CronExpression), nullIfEmpty(ar.TimeZoneID),
			ar.RelatedEntityID, ar.IsActive, nullIfEmpty(ar.Metadata),
			ar.UpdatedAt, ar.ID, ar.Version).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrConflict(ctx, tx, ar.ID)
		}
		if err != nil {
			return fmt.Errorf("update rule: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM automation_rule_recipients WHERE rule_id = $1`, ar.ID); err != nil {
			return fmt.Errorf("delete recipients: %w", err)
		}
		if err := insertRecipients(ctx, tx, ar); err != nil {
			return err
		}
		ar.Version = version
		return nil
	})
}

// missingOrConflict tells a stale version apart from a deleted rule.
func (r *RuleRepo) missingOrConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM automation_rules WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check rule: %w", err)
	}
	if !exists {
		return rule.ErrNotFound
	}
	return rule.ErrVersionConflict
}

func (r *RuleRepo) SetActive(ctx context.Context, id string, active bool) error {
	if !knownID(id) {
		return rule.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE automation_rules
		SET is_active = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
	`, active, id)
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return rule.ErrNotFound
	}
	return nil
}

func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	if !knownID(id) {
		return rule.ErrNotFound
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM automation_rule_recipients WHERE rule_id = $1`, id); err != nil {
			return fmt.Errorf("delete recipients: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return rule.ErrNotFound
		}
		return nil
	})
}

func insertRecipients(ctx context.Context, tx *sql.Tx, ar *domain.AutomationRule) error {
	for i, rc := range ar.Recipients {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO automation_rule_recipients
				(id, rule_id, recipient_type, user_id, email_address, role_name, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rc.ID, ar.ID, rc.RecipientType, nullIfEmpty(rc.UserID), nullIfEmpty(rc.EmailAddress),
			nullIfEmpty(rc.RoleName), i)
		if err != nil {
			return fmt.Errorf("insert recipient: %w", err)
		}
	}
	return nil
}

func (r *RuleRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
