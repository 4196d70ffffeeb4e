package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mosaic/internal/domain"
)

// Completer is anything that can complete a request, usually *Service.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// MeteredResult is a completion plus the caller's usage after it.
type MeteredResult struct {
	*Response
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Metered enforces plan limits around a Completer and records usage.
type Metered struct {
	next   Completer
	usage  domain.UsageRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewMetered(next Completer, usage domain.UsageRepository, logger zerolog.Logger) *Metered {
	return &Metered{next: next, usage: usage, logger: logger, now: time.Now}
}

// Complete checks plan gates and the monthly quota for userID, clamps the
// token budget, runs the completion and counts it. Concurrent requests may
// overshoot the quota by the number in flight.
func (m *Metered) Complete(ctx context.Context, userID string, plan domain.Plan, req Request) (*MeteredResult, error) {
	if !plan.HasFeature(domain.FeatureAICompletion) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFeatureUnavailable, domain.FeatureAICompletion)
	}
	if IsAdvancedModel(req.Model) && !plan.HasFeature(domain.FeatureAdvancedModels) {
		return nil, fmt.Errorf("%w: model %s requires %s", domain.ErrFeatureUnavailable, req.Model, domain.FeatureAdvancedModels)
	}
	period := domain.UsagePeriod(m.now())
	used, err := m.usage.Get(ctx, userID, domain.MetricCompletions, period)
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	if !plan.AllowsCompletions(used) {
		return nil, fmt.Errorf("%w: %d of %d completions used in %s", domain.ErrQuotaExceeded, used, plan.Limits.MonthlyCompletions, period)
	}

	req.MaxTokens = plan.ClampTokens(req.MaxTokens)
	req.User = userID
	req.StandardOnly = !plan.HasFeature(domain.FeatureAdvancedModels)
	resp, err := m.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	total, err := m.usage.Increment(ctx, userID, domain.MetricCompletions, period, 1)
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", userID).Msg("record completion usage")
		total = used + 1
	}
	if tokens := resp.Usage.Total(); tokens > 0 {
		if _, err := m.usage.Increment(ctx, userID, domain.MetricTokens, period, tokens); err != nil {
			m.logger.Error().Err(err).Str("user_id", userID).Msg("record token usage")
		}
	}
	return &MeteredResult{
		Response:  resp,
		Used:      total,
		Limit:     plan.Limits.MonthlyCompletions,
		Remaining: plan.RemainingCompletions(total),
	}, nil
}
