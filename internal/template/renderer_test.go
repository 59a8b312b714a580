package template

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	bodies map[string]string
	loads  atomic.Int32
}

func (m *mapSource) Load(_ context.Context, key string) (string, error) {
	m.loads.Add(1)
	body, ok := m.bodies[key]
	if !ok {
		return "", ErrTemplateNotFound
	}
	return body, nil
}

const layout = `<h1>{{ Title }}</h1><p>{{ Description }}</p>{{ Content }}{{ ActionSection }}<small>{{ Footer }}</small>`

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer(&mapSource{bodies: map[string]string{"layout": layout}})

	out, err := r.Render(context.Background(), "layout", map[string]string{
		"Title":         "Shipment delayed",
		"Description":   "SH-1042",
		"Content":       "<table><tr><td>x</td></tr></table>",
		"ActionSection": "",
		"Footer":        "Do not reply",
	})
	require.NoError(t, err)
	assert.Equal(t, `<h1>Shipment delayed</h1><p>SH-1042</p><table><tr><td>x</td></tr></table><small>Do not reply</small>`, out)
}

func TestRenderer_Filters(t *testing.T) {
	src := &mapSource{bodies: map[string]string{
		"filters": `{{ Name | default: "there" }}|{{ Amount | currency }}|{{ Email | mask_email }}|{{ Raw | escape }}`,
	}}
	r := NewRenderer(src)

	out, err := r.Render(context.Background(), "filters", map[string]string{
		"Amount": "1,250.5",
		"Email":  "jane.doe@example.com",
		"Raw":    "<b>",
	})
	require.NoError(t, err)
	assert.Equal(t, "there|$1250.50|ja***@example.com|&lt;b&gt;", out)
}

func TestRenderer_Errors(t *testing.T) {
	r := NewRenderer(&mapSource{bodies: map[string]string{"broken": "{% if Title %}unterminated"}})

	_, err := r.Render(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = r.Render(context.Background(), "broken", nil)
	assert.Error(t, err)
	assert.Error(t, r.Validate("{% for x in Items %}no end"))
	assert.NoError(t, r.Validate(layout))
}

func TestRenderer_ParseCacheFollowsBody(t *testing.T) {
	src := &mapSource{bodies: map[string]string{"k": "v1 {{ Title }}"}}
	r := NewRenderer(src)

	out, err := r.Render(context.Background(), "k", map[string]string{"Title": "a"})
	require.NoError(t, err)
	assert.Equal(t, "v1 a", out)

	src.bodies["k"] = "v2 {{ Title }}"
	out, err = r.Render(context.Background(), "k", map[string]string{"Title": "a"})
	require.NoError(t, err)
	assert.Equal(t, "v2 a", out)
}

func TestCachedSource(t *testing.T) {
	src := &mapSource{bodies: map[string]string{"k": "body"}}
	c := NewCachedSource(src, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		got, err := c.Load(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, "body", got)
	}
	assert.EqualValues(t, 1, src.loads.Load())

	now = now.Add(2 * time.Minute)
	_, _ = c.Load(context.Background(), "k")
	assert.EqualValues(t, 2, src.loads.Load())

	c.Invalidate("k")
	_, _ = c.Load(context.Background(), "k")
	assert.EqualValues(t, 3, src.loads.Load())

	_, err := c.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

type fakeS3 struct {
	objects map[string]string
	lastKey string
	err     error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastKey = aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[f.lastKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"notifications/shipment-status.liquid": "<p>{{ Title }}</p>"}}
	src := NewS3Source(client, "templates", "/notifications/")

	body, err := src.Load(context.Background(), "shipment-status")
	require.NoError(t, err)
	assert.Equal(t, "<p>{{ Title }}</p>", body)

	_, err = src.Load(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Equal(t, "notifications/unknown.liquid", client.lastKey)

	_, err = src.Load(context.Background(), "../secrets")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	client.err = errors.New("access denied")
	_, err = src.Load(context.Background(), "shipment-status")
	assert.ErrorIs(t, err, client.err)
}
