package placeholder

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/notify-engine/internal/domain"
)

const (
	defaultRangeDays = 1
	topCategories    = 5
)

// TransactionSource returns the finance transactions booked in [from, to].
type TransactionSource interface {
	ListTransactions(ctx context.Context, from, to time.Time) ([]domain.FinanceTransaction, error)
}

// CategoryTotal is the aggregated amount of one category.
type CategoryTotal struct {
	Kind     domain.TransactionKind
	Category string
	Total    float64
}

// FinanceSummary is the aggregate rendered into a finance summary mail.
type FinanceSummary struct {
	From       time.Time
	To         time.Time
	RangeDays  int
	Income     float64
	Expense    float64
	Categories []CategoryTotal
}

// Net is income minus expense.
func (s FinanceSummary) Net() float64 { return s.Income - s.Expense }

type financeMetadata struct {
	RangeDays int `json:"rangeDays"`
}

// ParseRangeDays reads rangeDays from rule metadata. Missing, malformed or
// non-positive values yield 1.
func ParseRangeDays(metadata string) int {
	var m financeMetadata
	if strings.TrimSpace(metadata) == "" || json.Unmarshal([]byte(metadata), &m) != nil || m.RangeDays <= 0 {
		return defaultRangeDays
	}
	return m.RangeDays
}

// Summarize aggregates the transactions that fall inside [from, to].
func Summarize(txs []domain.FinanceTransaction, from, to time.Time, rangeDays int) FinanceSummary {
	s := FinanceSummary{From: from, To: to, RangeDays: rangeDays}
	totals := make(map[CategoryTotal]float64)
	for _, tx := range txs {
		if tx.OccurredAt.Before(from) || tx.OccurredAt.After(to) {
			continue
		}
		switch tx.Kind {
		case domain.TransactionIncome:
			s.Income += tx.Amount
		case domain.TransactionExpense:
			s.Expense += tx.Amount
		default:
			continue
		}
		category := strings.TrimSpace(tx.Category)
		if category == "" {
			category = "Uncategorized"
		}
		totals[CategoryTotal{Kind: tx.Kind, Category: category}] += tx.Amount
	}

	for k, total := range totals {
		k.Total = total
		s.Categories = append(s.Categories, k)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		a, b := s.Categories[i], s.Categories[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Kind < b.Kind
	})
	if len(s.Categories) > topCategories {
		s.Categories = s.Categories[:topCategories]
	}
	return s
}

// NewFinanceSummaryBuilder returns the builder for scheduled finance
// summaries. The look-back window is rangeDays from the rule metadata.
func NewFinanceSummaryBuilder(src TransactionSource) Builder {
	return func(ctx context.Context, in BuildInput) (map[string]string, error) {
		days := ParseRangeDays(in.Rule.Metadata)
		to := in.Now
		from := to.Add(-time.Duration(days) * 24 * time.Hour)

		txs, err := src.ListTransactions(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("load finance transactions: %w", err)
		}
		s := Summarize(txs, from, to, days)

		start := from.In(in.Location).Format("2006-01-02")
		end := to.In(in.Location).Format("2006-01-02")
		return map[string]string{
			KeyTitle:       fmt.Sprintf("Finance summary (%d %s)", days, plural(days, "day", "days")),
			KeyDescription: fmt.Sprintf("Income and expenses from %s to %s", start, end),
			KeyContent:     renderFinanceHTML(s),
			"RuleName":     in.Rule.Name,
			"RangeDays":    strconv.Itoa(days),
			"PeriodStart":  start,
			"PeriodEnd":    end,
			"IncomeTotal":  FormatAmount(s.Income),
			"ExpenseTotal": FormatAmount(s.Expense),
			"NetTotal":     FormatAmount(s.Net()),
		}, nil
	}
}

func renderFinanceHTML(s FinanceSummary) string {
	var b strings.Builder
	b.WriteString(`<table class="finance-summary" style="border-collapse:collapse;width:100%;">`)
	row := func(label, value string) {
		fmt.Fprintf(&b, `<tr><td style="padding:6px 8px;">%s</td><td style="padding:6px 8px;text-align:right;">%s</td></tr>`,
			html.EscapeString(label), value)
	}
	row("Total income", FormatAmount(s.Income))
	row("Total expenses", FormatAmount(s.Expense))
	row("Net", FormatAmount(s.Net()))
	b.WriteString(`</table>`)

	if len(s.Categories) == 0 {
		b.WriteString(`<p>No transactions were recorded in this period.</p>`)
		return b.String()
	}

	b.WriteString(`<h3 style="margin:16px 0 8px;">Top categories</h3>`)
	b.WriteString(`<table class="finance-categories" style="border-collapse:collapse;width:100%;">`)
	b.WriteString(`<tr><th style="text-align:left;padding:6px 8px;">Category</th><th style="text-align:left;padding:6px 8px;">Type</th><th style="text-align:right;padding:6px 8px;">Amount</th></tr>`)
	for _, c := range s.Categories {
		fmt.Fprintf(&b, `<tr><td style="padding:6px 8px;">%s</td><td style="padding:6px 8px;">%s</td><td style="padding:6px 8px;text-align:right;">%s</td></tr>`,
			html.EscapeString(c.Category), html.EscapeString(string(c.Kind)), FormatAmount(c.Total))
	}
	b.WriteString(`</table>`)
	return b.String()
}

// FormatAmount renders v with two decimals and comma thousand separators.
func FormatAmount(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole, frac, _ := strings.Cut(strconv.FormatFloat(v, 'f', 2, 64), ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// RegisterFinance installs the finance summary builder for scheduled finance
// summaries.
func RegisterFinance(reg *Registry, src TransactionSource) {
	reg.Register(domain.ResourceFinance, domain.TriggerFinanceSummaryScheduled, NewFinanceSummaryBuilder(src))
}
