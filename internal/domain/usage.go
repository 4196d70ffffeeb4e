package domain

import "time"

// UsageMetric names a metered resource.
type UsageMetric string

const (
	MetricCompletions UsageMetric = "ai_completions"
	MetricTokens      UsageMetric = "ai_tokens"
)

const usagePeriodLayout = "2006-01"

// UsagePeriod returns the monthly bucket t falls in, in UTC.
func UsagePeriod(t time.Time) string {
	return t.UTC().Format(usagePeriodLayout)
}

// Usage is the current period's counters for a user.
type Usage struct {
	Period      string `json:"period"`
	Completions int    `json:"completions"`
	Tokens      int    `json:"tokens"`
}
