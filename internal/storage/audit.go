package storage

import (
	"context"
	"time"

	"github.com/ignite/notify-engine/internal/pkg/logger"
	"github.com/ignite/notify-engine/internal/service/dispatch"
)

var log = logger.Component("audit")

// Recorder stores one delivery.
type Recorder interface {
	Record(ctx context.Context, d Delivery) error
}

// AuditedTransport records every send attempt of the wrapped transport. A
// failed audit write is logged and never changes the send result.
type AuditedTransport struct {
	next     dispatch.Transport
	recorder Recorder
	timeout  time.Duration
}

// NewAuditedTransport wraps next.
func NewAuditedTransport(next dispatch.Transport, recorder Recorder) *AuditedTransport {
	return &AuditedTransport{next: next, recorder: recorder, timeout: 5 * time.Second}
}

func (t *AuditedTransport) Send(ctx context.Context, to, subject, body string) error {
	sendErr := t.next.Send(ctx, to, subject, body)

	d := Delivery{Recipient: to, Subject: subject, Status: StatusSent}
	if sendErr != nil {
		d.Status = StatusFailed
		d.Error = sendErr.Error()
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()
	if err := t.recorder.Record(actx, d); err != nil {
		log.Warn("delivery audit write failed", "recipient", to, "error", err)
	}
	return sendErr
}
