package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/notify-engine/internal/domain"
	"github.com/ignite/notify-engine/internal/pkg/logger"
	"github.com/ignite/notify-engine/internal/service/placeholder"
	"github.com/ignite/notify-engine/internal/service/recipient"
)

// DefaultConcurrency is the number of sends in flight per dispatch.
const DefaultConcurrency = 8

var log = logger.Component("dispatch")

// Request describes one notification to deliver.
type Request struct {
	ResourceType      domain.ResourceType
	TriggerType       domain.TriggerType
	TemplateKey       string
	Subject           string
	Placeholders      map[string]string
	RuleRecipients    []domain.AutomationRuleRecipient
	AdditionalUserIDs []string
	AdditionalEmails  []string
}

// SendFailure is a recipient whose transport call failed.
type SendFailure struct {
	Recipient string
	Err       error
}

// Result reports what happened to every resolved recipient.
type Result struct {
	Recipients []string
	Sent       int
	Failed     []SendFailure
	Skipped    []string
}

// Dispatcher renders and sends notifications. It is safe for concurrent use
// if its collaborators are.
type Dispatcher struct {
	resolver    RecipientResolver
	renderer    Renderer
	transport   Transport
	concurrency int
	sendTimeout time.Duration
}

// NewDispatcher creates a dispatcher with DefaultConcurrency and no
// per-send timeout.
func NewDispatcher(resolver RecipientResolver, renderer Renderer, transport Transport) *Dispatcher {
	return &Dispatcher{
		resolver:    resolver,
		renderer:    renderer,
		transport:   transport,
		concurrency: DefaultConcurrency,
	}
}

// SetConcurrency changes the number of concurrent sends. Values below 1 are
// ignored.
func (d *Dispatcher) SetConcurrency(n int) {
	if n > 0 {
		d.concurrency = n
	}
}

// SetSendTimeout bounds each transport call. Zero disables the bound.
func (d *Dispatcher) SetSendTimeout(t time.Duration) {
	if t >= 0 {
		d.sendTimeout = t
	}
}

// Dispatch resolves, renders and sends req. It returns an error only when
// resolution or rendering fails; send failures are reported in the result.
// Cancelling ctx stops new sends but lets in-flight sends finish.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	recipients, err := d.resolver.Resolve(ctx, recipient.Request{
		ResourceType:      req.ResourceType,
		RuleRecipients:    req.RuleRecipients,
		AdditionalUserIDs: req.AdditionalUserIDs,
		AdditionalEmails:  req.AdditionalEmails,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		log.Warn("no recipients resolved",
			"resource_type", req.ResourceType,
			"trigger_type", req.TriggerType,
			"template", req.TemplateKey)
		return &Result{}, nil
	}

	body, err := d.renderer.Render(ctx, req.TemplateKey, placeholder.Normalize(req.Placeholders))
	if err != nil {
		return nil, fmt.Errorf("render template %q: %w", req.TemplateKey, err)
	}

	res := d.fanOut(ctx, recipients, req.Subject, body)
	log.Info("dispatch complete",
		"template", req.TemplateKey,
		"recipients", len(recipients),
		"sent", res.Sent,
		"failed", len(res.Failed),
		"skipped", len(res.Skipped))
	return res, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (d *Dispatcher) fanOut(ctx context.Context, recipients []string, subject, body string) *Result {
	outcomes := make([]outcome, len(recipients))
	errs := make([]error, len(recipients))
	sendCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, to := range recipients {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// a slot may free up after cancellation
			if ctx.Err() != nil {
				return nil
			}
			if err := d.send(sendCtx, to, subject, body); err != nil {
				log.Error("send failed", "recipient", to, "error", err)
				outcomes[i], errs[i] = outcomeFailed, err
				return nil
			}
			outcomes[i] = outcomeSent
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Recipients: recipients}
	for i, o := range outcomes {
		switch o {
		case outcomeSent:
			res.Sent++
		case outcomeFailed:
			res.Failed = append(res.Failed, SendFailure{Recipient: recipients[i], Err: errs[i]})
		default:
			res.Skipped = append(res.Skipped, recipients[i])
		}
	}
	if len(res.Skipped) > 0 {
		log.Warn("dispatch cancelled before all sends started", "skipped", len(res.Skipped))
	}
	return res
}

func (d *Dispatcher) send(ctx context.Context, to, subject, body string) error {
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}
	return d.transport.Send(ctx, to, subject, body)
}
