package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"mosaic/internal/domain"
	"mosaic/internal/infra"
	"mosaic/internal/sqlinline"
)

// SubscriptionRepositoryPG implements domain.SubscriptionRepository.
type SubscriptionRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewSubscriptionRepository(sql infra.SQLExecutor) *SubscriptionRepositoryPG {
	return &SubscriptionRepositoryPG{sql: sql}
}

// Upsert stores the latest snapshot of a processor subscription. The
// access-ended marker is cleared whenever the subscription is live again.
func (r *SubscriptionRepositoryPG) Upsert(ctx context.Context, sub *domain.Subscription) error {
	var periodEnd *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd.UTC()
		periodEnd = &end
	}
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertSubscription,
		sub.ID,
		sub.UserID,
		sub.CustomerID,
		sub.PriceID,
		string(sub.Plan),
		string(sub.Status),
		periodEnd,
		sub.CancelAtPeriodEnd,
		sub.CanceledAt,
	)
	return err
}

// GetCurrentByUserID prefers a live subscription, then the ended one with the
// latest grace anchor. A cancel-at-period-end row whose period is over is not
// live.
func (r *SubscriptionRepositoryPG) GetCurrentByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	return scanSubscription(r.sql.QueryRow(ctx, sqlinline.QSelectCurrentSubscription, userID))
}

// ListEndedBefore returns canceled or lapsed subscriptions whose grace anchor
// is at or before the given instant and whose owner has not been told access
// ended, ordered by id and starting after afterID.
func (r *SubscriptionRepositoryPG) ListEndedBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]domain.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListEndedForSweep, before.UTC(), afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (r *SubscriptionRepositoryPG) MarkAccessEndedNotified(ctx context.Context, id string, at time.Time) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkAccessEndedNotified, id, at.UTC())
	return err
}

// Delete removes a subscription row. Only operator grants are deleted;
// processor subscriptions are kept as history.
func (r *SubscriptionRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteSubscription, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		s         domain.Subscription
		plan      string
		status    string
		periodEnd *time.Time
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.CustomerID,
		&s.PriceID,
		&plan,
		&status,
		&periodEnd,
		&s.CancelAtPeriodEnd,
		&s.CanceledAt,
		&s.AccessEndedNotifiedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	s.Plan = domain.PlanType(plan)
	s.Status = domain.SubscriptionStatus(status)
	if periodEnd != nil {
		s.CurrentPeriodEnd = *periodEnd
	}
	return &s, nil
}
