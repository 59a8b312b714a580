// Package template renders notification templates with the Liquid template
// language. Bodies come from a Source (Postgres or S3); parsed templates are
// cached by key and body checksum.
package template

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/notify-engine/internal/pkg/logger"
)

var log = logger.Component("template")

// Renderer renders templates loaded from a Source. It is safe for
// concurrent use.
type Renderer struct {
	engine *liquid.Engine
	src    Source
	cache  sync.Map // map[string]*liquid.Template keyed by key + checksum
}

// NewRenderer creates a renderer with the notification filters registered.
func NewRenderer(src Source) *Renderer {
	r := &Renderer{engine: liquid.NewEngine(), src: src}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// {{ Name | default: "there" }}
	r.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	r.engine.RegisterFilter("escape", func(s string) string { return html.EscapeString(s) })
	r.engine.RegisterFilter("urlencode", func(s string) string { return url.QueryEscape(s) })

	// {{ Amount | currency }}; placeholders arrive as strings
	r.engine.RegisterFilter("currency", func(value interface{}) string {
		s := strings.ReplaceAll(fmt.Sprintf("%v", value), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return fmt.Sprintf("$%.2f", f)
	})

	r.engine.RegisterFilter("mask_email", logger.RedactEmail)
}

// Render loads the template for key and renders it with vars. Unknown
// variables render as empty strings.
func (r *Renderer) Render(ctx context.Context, key string, vars map[string]string) (string, error) {
	body, err := r.src.Load(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load template %q: %w", key, err)
	}

	tpl, err := r.parse(key, body)
	if err != nil {
		return "", err
	}

	bindings := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		bindings[k] = v
	}
	out, rerr := tpl.RenderString(bindings)
	if rerr != nil {
		log.Error("render failed", "template", key, "error", rerr)
		return "", fmt.Errorf("render template %q: %w", key, rerr)
	}
	return out, nil
}

// Validate parses body without caching it. scripts/seed_templates.go uses it
// to reject broken templates before they are stored.
func (r *Renderer) Validate(body string) error {
	if _, err := r.engine.ParseString(body); err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return nil
}

func (r *Renderer) parse(key, body string) (*liquid.Template, error) {
	sum := sha256.Sum256([]byte(body))
	cacheKey := key + ":" + hex.EncodeToString(sum[:8])
	if cached, ok := r.cache.Load(cacheKey); ok {
		return cached.(*liquid.Template), nil
	}

	tpl, err := r.engine.ParseString(body)
	if err != nil {
		log.Error("parse failed", "template", key, "error", err)
		return nil, fmt.Errorf("parse template %q: %w", key, err)
	}
	r.cache.Store(cacheKey, tpl)
	return tpl, nil
}
