package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const openAIProviderName = "openai"

type OpenAIProvider struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	User        string          `json:"user,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func NewOpenAIProvider(opts Options) (*OpenAIProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := resolveConfiguredModel(openAIModels, opts)
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAIProvider{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
	}, nil
}

func (o *OpenAIProvider) Name() string { return openAIProviderName }

func (o *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := modelFor(openAIModels, req, o.model)
	payload := openAIChatRequest{
		Model:       model,
		MaxTokens:   maxTokens(req),
		Temperature: req.Temperature,
		User:        req.User,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		payload.Messages = append(payload.Messages, openAIMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, openAIMessage{Role: "user", Content: req.Prompt})

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if o.organization != "" {
		headers["OpenAI-Organization"] = o.organization
	}
	body, err := postJSON(ctx, o.client, openAIProviderName, fmt.Sprintf("%s/chat/completions", o.baseURL), headers, payload)
	if err != nil {
		return nil, err
	}
	var out openAIChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, providerError(openAIProviderName, "decode_response", 0, err)
	}
	if len(out.Choices) == 0 {
		return nil, providerError(openAIProviderName, "empty_choices", 0, errors.New("no choices"))
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return nil, providerError(openAIProviderName, "empty_response", 0, errors.New("empty response"))
	}
	return &Response{
		Text:         text,
		Model:        coalesce(out.Model, model),
		Provider:     openAIProviderName,
		FinishReason: out.Choices[0].FinishReason,
		Usage:        Usage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens},
	}, nil
}

// resolveConfiguredModel normalizes the configured default model, warning
// when it had to be corrected.
func resolveConfiguredModel(family modelFamily, opts Options) string {
	input := strings.TrimSpace(opts.Model)
	model, reason := family.resolve(input)
	if reason != "" && opts.OnWarning != nil {
		opts.OnWarning("model_"+reason, fmt.Sprintf("requested=%s resolved=%s", coalesce(input, family.fallback), model))
	}
	return model
}

// modelFor picks the requested model when the family serves it, otherwise the
// provider's configured model. Standard-only requests fall back to the
// family's default when the pick is an advanced model.
func modelFor(family modelFamily, req Request, configured string) string {
	model := configured
	if family.serves(req.Model) && strings.TrimSpace(req.Model) != "" {
		model, _ = family.resolve(req.Model)
	}
	if req.StandardOnly && family.advanced[canonicalKey(model)] {
		return family.fallback
	}
	return model
}

var _ Provider = (*OpenAIProvider)(nil)
