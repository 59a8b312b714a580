package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/notify-engine/internal/domain"
)

// FinanceRepo implements placeholder.TransactionSource.
type FinanceRepo struct{ db *sql.DB }

// NewFinanceRepo creates a Postgres-backed transaction source.
func NewFinanceRepo(db *sql.DB) *FinanceRepo { return &FinanceRepo{db: db} }

// ListTransactions returns the transactions booked in [from, to].
func (r *FinanceRepo) ListTransactions(ctx context.Context, from, to time.Time) ([]domain.FinanceTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, category, amount, occurred_at
		FROM finance_transactions
		WHERE occurred_at >= $1 AND occurred_at <= $2
		ORDER BY occurred_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list finance transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.FinanceTransaction
	for rows.Next() {
		var tx domain.FinanceTransaction
		if err := rows.Scan(&tx.ID, &tx.Kind, &tx.Category, &tx.Amount, &tx.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan finance transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
