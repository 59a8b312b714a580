package transport

import (
	"context"
	"sync/atomic"

	"github.com/ignite/notify-engine/internal/pkg/logger"
)

var dryLog = logger.Component("transport")

// Log is a dry-run transport: it logs each message instead of sending it.
type Log struct {
	sent atomic.Int64
}

// NewLog creates a dry-run transport.
func NewLog() *Log { return &Log{} }

func (l *Log) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.sent.Add(1)
	dryLog.Info("dry run send", "recipient", to, "subject", subject, "bytes", len(body))
	return nil
}

// Sent returns how many messages were accepted.
func (l *Log) Sent() int64 { return l.sent.Load() }
