package repo

import (
	"context"

	"mosaic/internal/domain"
	"mosaic/internal/infra"
	"mosaic/internal/sqlinline"
)

// UsageRepositoryPG implements domain.UsageRepository.
type UsageRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewUsageRepository(sql infra.SQLExecutor) *UsageRepositoryPG {
	return &UsageRepositoryPG{sql: sql}
}

// Get returns the counter value, zero when nothing was recorded yet.
func (r *UsageRepositoryPG) Get(ctx context.Context, userID string, metric domain.UsageMetric, period string) (int, error) {
	var count int
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectUsageCount, userID, string(metric), period).Scan(&count); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Increment adds delta to the counter and returns the new total.
func (r *UsageRepositoryPG) Increment(ctx context.Context, userID string, metric domain.UsageMetric, period string, delta int) (int, error) {
	var count int
	if err := r.sql.QueryRow(ctx, sqlinline.QIncrementUsage, userID, string(metric), period, delta).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// PruneBefore deletes counters of periods strictly older than period.
func (r *UsageRepositoryPG) PruneBefore(ctx context.Context, period string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QPruneUsageBefore, period)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
