package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PlanType enumerates subscription tiers.
type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanPremium    PlanType = "premium"
	PlanEnterprise PlanType = "enterprise"
)

// Feature names a capability gated by plan.
type Feature string

const (
	FeatureAICompletion    Feature = "ai_completion"
	FeatureAdvancedModels  Feature = "advanced_models"
	FeaturePrioritySupport Feature = "priority_support"
	FeatureCustomBranding  Feature = "custom_branding"
	FeatureAPIAccess       Feature = "api_access"
	FeatureDataExport      Feature = "data_export"
)

// Unlimited marks a limit without an upper bound.
const Unlimited = -1

// PlanLimits holds the resource ceilings of a plan.
type PlanLimits struct {
	MonthlyCompletions  int `json:"monthly_completions"`
	MaxTokensPerRequest int `json:"max_tokens_per_request"`
}

// Plan is a static, immutable tier declaration.
type Plan struct {
	Type     PlanType   `json:"type"`
	Name     string     `json:"name"`
	Limits   PlanLimits `json:"limits"`
	Features []Feature  `json:"features"`
}

var planOrder = []PlanType{PlanFree, PlanPremium, PlanEnterprise}

var plans = map[PlanType]Plan{
	PlanFree: newPlan(PlanFree, PlanLimits{MonthlyCompletions: 25, MaxTokensPerRequest: 512},
		FeatureAICompletion,
	),
	PlanPremium: newPlan(PlanPremium, PlanLimits{MonthlyCompletions: 1000, MaxTokensPerRequest: 2048},
		FeatureAICompletion, FeatureAdvancedModels, FeaturePrioritySupport, FeatureDataExport,
	),
	PlanEnterprise: newPlan(PlanEnterprise, PlanLimits{MonthlyCompletions: Unlimited, MaxTokensPerRequest: 8192},
		FeatureAICompletion, FeatureAdvancedModels, FeaturePrioritySupport, FeatureCustomBranding, FeatureAPIAccess, FeatureDataExport,
	),
}

func newPlan(t PlanType, limits PlanLimits, features ...Feature) Plan {
	return Plan{
		Type:     t,
		Name:     cases.Title(language.English).String(string(t)),
		Limits:   limits,
		Features: features,
	}
}

// ParsePlanType validates a plan name.
func ParsePlanType(raw string) (PlanType, error) {
	t := PlanType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := plans[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlan, raw)
	}
	return t, nil
}

// PlanFor returns the declaration for t, or the free plan when t is unknown.
func PlanFor(t PlanType) Plan {
	if p, ok := plans[t]; ok {
		return clonePlan(p)
	}
	return clonePlan(plans[PlanFree])
}

// Catalog lists every plan in tier order.
func Catalog() []Plan {
	out := make([]Plan, 0, len(planOrder))
	for _, t := range planOrder {
		out = append(out, clonePlan(plans[t]))
	}
	return out
}

func clonePlan(p Plan) Plan {
	p.Features = append([]Feature(nil), p.Features...)
	return p
}

// IsPaid reports whether the plan is billed.
func (t PlanType) IsPaid() bool {
	return t == PlanPremium || t == PlanEnterprise
}

// HasFeature reports whether the plan includes f.
func (p Plan) HasFeature(f Feature) bool {
	for _, feature := range p.Features {
		if feature == f {
			return true
		}
	}
	return false
}

// AllowsCompletions reports whether another completion fits in the monthly limit.
func (p Plan) AllowsCompletions(used int) bool {
	if p.Limits.MonthlyCompletions == Unlimited {
		return true
	}
	return used < p.Limits.MonthlyCompletions
}

// RemainingCompletions returns how many completions are left, or Unlimited.
func (p Plan) RemainingCompletions(used int) int {
	if p.Limits.MonthlyCompletions == Unlimited {
		return Unlimited
	}
	if left := p.Limits.MonthlyCompletions - used; left > 0 {
		return left
	}
	return 0
}

// ClampTokens bounds a requested token budget by the plan maximum. A zero
// request resolves to the maximum.
func (p Plan) ClampTokens(requested int) int {
	max := p.Limits.MaxTokensPerRequest
	if max == Unlimited {
		return requested
	}
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}
