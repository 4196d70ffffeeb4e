// Package ai exposes text completion across OpenAI, Anthropic and Gemini with
// an ordered fallback chain and plan-aware metering.
package ai

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Request is a single-turn completion request.
type Request struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	// User is forwarded to vendors that accept an end-user identifier.
	User string `json:"-"`
	// StandardOnly keeps providers off models gated behind advanced_models,
	// including their configured default.
	StandardOnly bool `json:"-"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// FallbackReason records a provider that failed before the answering one.
type FallbackReason struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

type Response struct {
	Text            string           `json:"text"`
	Model           string           `json:"model"`
	Provider        string           `json:"provider"`
	FinishReason    string           `json:"finish_reason,omitempty"`
	Usage           Usage            `json:"usage"`
	FallbackReasons []FallbackReason `json:"fallback_reasons,omitempty"`
}

// Provider is one AI vendor.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Options configure a vendor provider.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	// Organization is sent to OpenAI when set.
	Organization string
	// OnWarning reports configuration that was silently corrected.
	OnWarning func(reason, detail string)
}

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 60 * time.Second
)

func coalesce(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}
