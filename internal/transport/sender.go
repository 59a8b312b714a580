package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoProvider is returned for an unknown provider name.
var ErrNoProvider = errors.New("unknown transport provider")

// Sender delivers one rendered message to one address.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// From is the envelope sender shared by every transport.
type From struct {
	Name  string
	Email string
}

func (f From) String() string {
	if strings.TrimSpace(f.Name) == "" {
		return f.Email
	}
	return fmt.Sprintf("%s <%s>", f.Name, f.Email)
}

// Options selects and configures a transport.
type Options struct {
	Provider         string // ses, sparkpost or log
	From             From
	SES              SESOptions
	SparkPostAPIKey  string
	SparkPostBaseURL string
}

// New builds the transport named by opts.Provider.
func New(ctx context.Context, opts Options) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "ses":
		s, err := NewSESFromConfig(ctx, opts.SES, opts.From)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sparkpost":
		if opts.SparkPostAPIKey == "" {
			return nil, errors.New("sparkpost transport requires an API key")
		}
		return NewSparkPost(opts.SparkPostAPIKey, opts.SparkPostBaseURL, opts.From, nil), nil
	case "log", "":
		return NewLog(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoProvider, opts.Provider)
}
