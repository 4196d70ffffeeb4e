package handlers

import (
	"net/http"
	"strconv"

	"mosaic/internal/domain"
	"mosaic/internal/providers/ai"
)

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

const maxPromptBytes = 32 << 10

// Completion runs a metered completion for the caller's effective plan.
func (a *App) Completion(w http.ResponseWriter, r *http.Request) {
	if a.AI == nil {
		a.error(w, http.StatusServiceUnavailable, "ai_unavailable", "no AI provider is configured")
		return
	}
	var req completionRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Prompt) > maxPromptBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "prompt_too_large", "prompt is too long")
		return
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		a.error(w, http.StatusBadRequest, "bad_request", "temperature must be between 0 and 2")
		return
	}
	acct, err := a.loadAccount(r.Context())
	if err != nil {
		a.fail(w, r, err, "load account")
		return
	}
	result, err := a.AI.Complete(r.Context(), acct.profile.ID, acct.plan, ai.Request{
		Prompt:      req.Prompt,
		System:      req.System,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		a.fail(w, r, err, "ai completion")
		return
	}
	remaining := "unlimited"
	if result.Limit != domain.Unlimited {
		remaining = strconv.Itoa(result.Remaining)
	}
	w.Header().Set("X-Quota-Remaining", remaining)
	a.json(w, http.StatusOK, result)
}
