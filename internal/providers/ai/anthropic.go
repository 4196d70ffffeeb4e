package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	anthropicProviderName = "anthropic"
	anthropicVersion      = "2023-06-01"
)

type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Metadata    *anthropicMetadata `json:"metadata,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMetadata struct {
	UserID string `json:"user_id"`
}

func NewAnthropicProvider(opts Options) (*AnthropicProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &AnthropicProvider{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   resolveConfiguredModel(anthropicModels, opts),
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (a *AnthropicProvider) Name() string { return anthropicProviderName }

func (a *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := modelFor(anthropicModels, req, a.model)
	payload := anthropicRequest{
		Model:       model,
		System:      strings.TrimSpace(req.System),
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens(req),
		Temperature: req.Temperature,
	}
	if req.User != "" {
		payload.Metadata = &anthropicMetadata{UserID: req.User}
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
	body, err := postJSON(ctx, a.client, anthropicProviderName, a.baseURL+"/messages", headers, payload)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, providerError(anthropicProviderName, "decode_response", 0, errors.New("invalid json"))
	}
	parsed := gjson.ParseBytes(body)
	var parts []string
	parsed.Get("content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			parts = append(parts, block.Get("text").String())
		}
		return true
	})
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return nil, providerError(anthropicProviderName, "empty_response", 0, errors.New("no text content"))
	}
	return &Response{
		Text:         text,
		Model:        coalesce(parsed.Get("model").String(), model),
		Provider:     anthropicProviderName,
		FinishReason: parsed.Get("stop_reason").String(),
		Usage: Usage{
			InputTokens:  int(parsed.Get("usage.input_tokens").Int()),
			OutputTokens: int(parsed.Get("usage.output_tokens").Int()),
		},
	}, nil
}

var _ Provider = (*AnthropicProvider)(nil)
