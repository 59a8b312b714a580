package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSES_Send(t *testing.T) {
	fake := &fakeSES{}
	s := NewSES(fake, From{Name: "Ops", Email: "noreply@example.com"}, "transactional")

	require.NoError(t, s.Send(context.Background(), "ann@example.com", "Shipment delayed", "<p>late</p>"))

	require.NotNil(t, fake.in)
	assert.Equal(t, "Ops <noreply@example.com>", aws.ToString(fake.in.FromEmailAddress))
	assert.Equal(t, []string{"ann@example.com"}, fake.in.Destination.ToAddresses)
	assert.Equal(t, "Shipment delayed", aws.ToString(fake.in.Content.Simple.Subject.Data))
	assert.Equal(t, "<p>late</p>", aws.ToString(fake.in.Content.Simple.Body.Html.Data))
	assert.Equal(t, "transactional", aws.ToString(fake.in.ConfigurationSetName))
}

func TestSES_SendError(t *testing.T) {
	s := NewSES(&fakeSES{err: errors.New("MessageRejected")}, From{Email: "noreply@example.com"}, "")
	err := s.Send(context.Background(), "ann@example.com", "s", "b")
	assert.ErrorContains(t, err, "MessageRejected")

	var nilClient SES
	assert.Error(t, nilClient.Send(context.Background(), "ann@example.com", "s", "b"))
}

func TestSparkPost_Send(t *testing.T) {
	var got transmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transmissions", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"results":{"id":"tx-1","total_accepted_recipients":1}}`))
	}))
	defer srv.Close()

	s := NewSparkPost("key-123", srv.URL, From{Name: "Ops", Email: "noreply@example.com"}, srv.Client())
	require.NoError(t, s.Send(context.Background(), "bob@example.com", "Task assigned", "<p>hi</p>"))

	assert.True(t, got.Options.Transactional)
	require.Len(t, got.Recipients, 1)
	assert.Equal(t, "bob@example.com", got.Recipients[0].Address.Email)
	assert.Equal(t, "noreply@example.com", got.Content.From.Email)
	assert.Equal(t, "Task assigned", got.Content.Subject)
}

func TestSparkPost_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"invalid recipient"}]}`))
	}))
	defer srv.Close()

	s := NewSparkPost("key-123", srv.URL, From{Email: "noreply@example.com"}, nil)
	err := s.Send(context.Background(), "bad", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SparkPost error 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSparkPost_MissingKey(t *testing.T) {
	err := NewSparkPost("", "", From{}, nil).Send(context.Background(), "a@example.com", "s", "b")
	assert.Error(t, err)
}

func TestLog_Send(t *testing.T) {
	l := NewLog()
	require.NoError(t, l.Send(context.Background(), "a@example.com", "s", "body"))
	assert.Equal(t, int64(1), l.Sent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Send(ctx, "a@example.com", "s", "body"), context.Canceled)
	assert.Equal(t, int64(1), l.Sent())
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), Options{Provider: "log"})
	require.NoError(t, err)
	assert.IsType(t, &Log{}, s)

	s, err = New(context.Background(), Options{Provider: "SparkPost", SparkPostAPIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &SparkPost{}, s)

	_, err = New(context.Background(), Options{Provider: "sparkpost"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Provider: "pigeon"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestFromString(t *testing.T) {
	assert.Equal(t, "noreply@example.com", From{Email: "noreply@example.com"}.String())
	assert.Equal(t, "Ops <noreply@example.com>", From{Name: "Ops", Email: "noreply@example.com"}.String())
}
