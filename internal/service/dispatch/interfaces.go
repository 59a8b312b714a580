package dispatch

import (
	"context"

	"github.com/ignite/notify-engine/internal/service/recipient"
)

// Transport delivers one rendered message to one address. Implementations
// must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Renderer renders the template identified by key with vars.
type Renderer interface {
	Render(ctx context.Context, key string, vars map[string]string) (string, error)
}

// RecipientResolver turns rule recipients and event additions into
// addresses. *recipient.Resolver satisfies it.
type RecipientResolver interface {
	Resolve(ctx context.Context, req recipient.Request) ([]string, error)
}
