package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/notify-engine/internal/domain"
)

// PreferenceRepo implements recipient.PreferenceStore against PostgreSQL.
type PreferenceRepo struct{ db *sql.DB }

// NewPreferenceRepo creates a Postgres-backed preference store.
func NewPreferenceRepo(db *sql.DB) *PreferenceRepo { return &PreferenceRepo{db: db} }

// LoadPreferences returns the stored rows for ids in one query. Users
// without a row are absent from the map; NULL columns are absent from
// Allowed.
func (r *PreferenceRepo) LoadPreferences(ctx context.Context, ids []string) (map[string]domain.NotificationPreference, error) {
	out := make(map[string]domain.NotificationPreference, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, shipment_updates, payment_reminders, warehouse_alerts,
		       customer_interactions, system_announcements
		FROM notification_preferences
		WHERE user_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		var shipment, payment, warehouse, customer, system sql.NullBool
		if err := rows.Scan(&userID, &shipment, &payment, &warehouse, &customer, &system); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		allowed := make(map[domain.ResourceType]bool)
		for rt, col := range map[domain.ResourceType]sql.NullBool{
			domain.ResourceShipment:  shipment,
			domain.ResourceFinance:   payment,
			domain.ResourceWarehouse: warehouse,
			domain.ResourceCustomer:  customer,
			domain.ResourceTask:      system,
		} {
			if col.Valid {
				allowed[rt] = col.Bool
			}
		}
		out[userID] = domain.NotificationPreference{UserID: userID, Allowed: allowed}
	}
	return out, rows.Err()
}
