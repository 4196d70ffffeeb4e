package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const geminiProviderName = "gemini"

type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	CandidateCount  int      `json:"candidateCount,omitempty"`
}

func NewGeminiProvider(opts Options) (*GeminiProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &GeminiProvider{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   resolveConfiguredModel(geminiModels, opts),
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (g *GeminiProvider) Name() string { return geminiProviderName }

func (g *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := modelFor(geminiModels, req, g.model)
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.Prompt}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: maxTokens(req),
			CandidateCount:  1,
		},
	}
	if system := strings.TrimSpace(req.System); system != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(model), url.QueryEscape(g.apiKey))
	body, err := postJSON(ctx, g.client, geminiProviderName, endpoint, nil, payload)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, providerError(geminiProviderName, "decode_response", 0, errors.New("invalid json"))
	}
	parsed := gjson.ParseBytes(body)
	if reason := parsed.Get("promptFeedback.blockReason").String(); reason != "" {
		return nil, providerError(geminiProviderName, "blocked", 0, fmt.Errorf("prompt blocked: %s", reason))
	}
	candidate := parsed.Get("candidates.0")
	if !candidate.Exists() {
		return nil, providerError(geminiProviderName, "empty_candidates", 0, errors.New("no candidates"))
	}
	var parts []string
	for _, part := range candidate.Get("content.parts.#.text").Array() {
		parts = append(parts, part.String())
	}
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return nil, providerError(geminiProviderName, "empty_response", 0, errors.New("empty response"))
	}
	return &Response{
		Text:         text,
		Model:        coalesce(parsed.Get("modelVersion").String(), model),
		Provider:     geminiProviderName,
		FinishReason: strings.ToLower(candidate.Get("finishReason").String()),
		Usage: Usage{
			InputTokens:  int(parsed.Get("usageMetadata.promptTokenCount").Int()),
			OutputTokens: int(parsed.Get("usageMetadata.candidatesTokenCount").Int()),
		},
	}, nil
}

var _ Provider = (*GeminiProvider)(nil)
