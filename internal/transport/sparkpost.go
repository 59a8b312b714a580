package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/notify-engine/internal/pkg/httpretry"
	"github.com/ignite/notify-engine/internal/pkg/logger"
)

const sparkPostBaseURL = "https://api.sparkpost.com/api/v1"

var sparkLog = logger.Component("sparkpost")

// SparkPost sends through the SparkPost Transmissions API.
type SparkPost struct {
	apiKey  string
	baseURL string
	from    From
	client  httpretry.HTTPDoer
}

// NewSparkPost creates a SparkPost transport. An empty baseURL targets the
// public v1 API; a nil client gets a retrying default.
func NewSparkPost(apiKey, baseURL string, from From, client httpretry.HTTPDoer) *SparkPost {
	if baseURL == "" {
		baseURL = sparkPostBaseURL
	}
	if client == nil {
		client = httpretry.New(nil, httpretry.DefaultPolicy)
	}
	return &SparkPost{apiKey: apiKey, baseURL: baseURL, from: from, client: client}
}

type transmission struct {
	Options    transmissionOptions `json:"options"`
	Recipients []recipientAddress  `json:"recipients"`
	Content    transmissionContent `json:"content"`
}

type transmissionOptions struct {
	Transactional bool `json:"transactional"`
}

type recipientAddress struct {
	Address struct {
		Email string `json:"email"`
	} `json:"address"`
}

type transmissionContent struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	} `json:"from"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (s *SparkPost) Send(ctx context.Context, to, subject, body string) error {
	if s.apiKey == "" {
		return errors.New("SparkPost API key not configured")
	}

	var t transmission
	t.Options.Transactional = true
	var rcpt recipientAddress
	rcpt.Address.Email = to
	t.Recipients = []recipientAddress{rcpt}
	t.Content.From.Email = s.from.Email
	t.Content.From.Name = s.from.Name
	t.Content.Subject = subject
	t.Content.HTML = body

	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transmissions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("SparkPost request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("SparkPost error %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	_ = json.Unmarshal(respBody, &result)
	sparkLog.Debug("sent", "recipient", to, "transmission_id", result.Results.ID)
	return nil
}
