// +build ignore

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/notify-engine/internal/template"
)

// layoutHTML is the shared notification layout. Every seeded template uses
// the layout placeholders the engine always fills.
const layoutHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ Title | escape }}</title>
</head>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Arial,Helvetica,sans-serif;color:#24292f;">
    <table role="presentation" width="100%%" cellpadding="0" cellspacing="0" style="padding:24px 0;">
        <tr><td align="center">
            <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:6px;">
                <tr><td style="padding:24px 32px;border-bottom:1px solid #e1e4e8;">
                    <h1 style="margin:0;font-size:22px;">{{ Title | escape }}</h1>
                    <p style="margin:8px 0 0;color:#57606a;">{{ Description | escape }}</p>
                </td></tr>
                <tr><td style="padding:24px 32px;">%s</td></tr>
                <tr><td style="padding:0 32px 24px;">{{ ActionSection }}</td></tr>
                <tr><td style="padding:16px 32px;font-size:12px;color:#8c959f;border-top:1px solid #e1e4e8;">{{ Footer | escape }}</td></tr>
            </table>
        </td></tr>
    </table>
</body>
</html>`

var templates = []struct {
	Key     string
	Content string
}{
	{"notification-default", `{{ Content }}`},
	{"shipment-created", `<p>Shipment <strong>{{ ShipmentNumber | default: "" | escape }}</strong> was created.</p>{{ Content }}`},
	{"shipment-status-changed", `<p>Shipment <strong>{{ ShipmentNumber | default: "" | escape }}</strong> is now <strong>{{ Status | default: "updated" | escape }}</strong>.</p>{{ Content }}`},
	{"payment-due", `<p>A payment of <strong>{{ Amount | currency }}</strong> is due on {{ DueDate | escape }}.</p>{{ Content }}`},
	{"task-assigned", `<p>{{ TaskTitle | default: "A task" | escape }} was assigned to you.</p>{{ Content }}`},
	{"warehouse-low-stock", `<p>Stock for {{ Item | default: "an item" | escape }} fell below its threshold.</p>{{ Content }}`},
	{"finance-summary", `<p>Net result: <strong>{{ NetTotal }}</strong> (income {{ IncomeTotal }}, expenses {{ ExpenseTotal }}).</p>{{ Content }}`},
}

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}

	renderer := template.NewRenderer(nil)
	for _, t := range templates {
		body := fmt.Sprintf(layoutHTML, t.Content)
		if err := renderer.Validate(body); err != nil {
			log.Fatalf("template %s: %v", t.Key, err)
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO notification_templates (template_key, body, is_active, updated_at)
			VALUES ($1, $2, TRUE, NOW())
			ON CONFLICT (template_key) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
		`, t.Key, body)
		if err != nil {
			log.Fatalf("seed %s: %v", t.Key, err)
		}
		fmt.Printf("  ✓ %s\n", t.Key)
	}
	fmt.Printf("Seeded %d templates at %s\n", len(templates), time.Now().Format(time.RFC3339))
}
