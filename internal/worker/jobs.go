// Package worker holds the scheduled maintenance jobs run by cmd/worker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mosaic/internal/domain"
	"mosaic/internal/subscription"
)

const (
	JobGraceSweep = "grace_sweep"
	JobCleanup    = "cleanup"

	sweepBatch = 100

	webhookRetention = 30 * 24 * time.Hour
	usageRetention   = 12 // months
)

// AccessEndedMailer sends the notice that a canceled plan stopped granting access.
type AccessEndedMailer interface {
	AccessEnded(ctx context.Context, profile domain.Profile, plan domain.Plan) error
}

// Recorder receives one observation per job run.
type Recorder interface {
	WorkerRun(job string, err error)
}

type Jobs struct {
	Logger        zerolog.Logger
	Subscriptions domain.SubscriptionRepository
	Profiles      domain.ProfileRepository
	Usage         domain.UsageRepository
	WebhookEvents domain.WebhookEventRepository
	Mailer        AccessEndedMailer
	Recorder      Recorder
	Now           func() time.Time
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}

func (j *Jobs) record(job string, err error) {
	if j.Recorder != nil {
		j.Recorder.WorkerRun(job, err)
	}
}

// SweepResult summarises one grace sweep.
type SweepResult struct {
	Notified int
	Skipped  int
	Failed   int
}

// SweepGracePeriods emails every user whose canceled or lapsed subscription
// left its grace window and marks the subscription so the notice is sent
// once. Individual failures are logged and retried on the next run.
func (j *Jobs) SweepGracePeriods(ctx context.Context) (SweepResult, error) {
	res, err := j.sweep(ctx)
	j.record(JobGraceSweep, err)
	return res, err
}

func (j *Jobs) sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := j.now()
	// Pages are keyed by id so rows that keep failing do not hide later ones.
	afterID := ""
	for {
		subs, err := j.Subscriptions.ListEndedBefore(ctx, now.Add(-subscription.GracePeriod), afterID, sweepBatch)
		if err != nil {
			return res, fmt.Errorf("list ended subscriptions: %w", err)
		}
		for i := range subs {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			j.notifyEnded(ctx, &subs[i], now, &res)
		}
		if len(subs) < sweepBatch {
			break
		}
		afterID = subs[len(subs)-1].ID
	}

	j.Logger.Info().
		Int("notified", res.Notified).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("worker: grace sweep finished")
	return res, nil
}

// CleanupResult counts the rows removed by Cleanup.
type CleanupResult struct {
	WebhookEvents int64
	UsageCounters int64
}

// Cleanup prunes processed webhook events older than 30 days and usage
// counters older than 12 months.
func (j *Jobs) Cleanup(ctx context.Context) (CleanupResult, error) {
	res, err := j.cleanup(ctx)
	j.record(JobCleanup, err)
	return res, err
}

func (j *Jobs) notifyEnded(ctx context.Context, sub *domain.Subscription, now time.Time, res *SweepResult) {
	log := j.Logger.With().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Logger()
	if sub.AccessEndedNotifiedAt != nil || !subscription.GraceExpired(sub, now) {
		res.Skipped++
		return
	}

	profile, err := j.Profiles.GetByID(ctx, sub.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		// Nobody to notify; mark it so the row stops coming back.
		if err := j.Subscriptions.MarkAccessEndedNotified(ctx, sub.ID, now); err != nil {
			log.Error().Err(err).Msg("worker: mark orphaned subscription failed")
			res.Failed++
			return
		}
		res.Skipped++
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("worker: load profile failed")
		res.Failed++
		return
	}

	if j.Mailer != nil {
		if err := j.Mailer.AccessEnded(ctx, *profile, domain.PlanFor(sub.Plan)); err != nil {
			log.Error().Err(err).Msg("worker: access ended email failed")
			res.Failed++
			return
		}
	}
	if err := j.Subscriptions.MarkAccessEndedNotified(ctx, sub.ID, now); err != nil {
		log.Error().Err(err).Msg("worker: mark access ended failed")
		res.Failed++
		return
	}
	res.Notified++
}

func (j *Jobs) cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	now := j.now()

	events, err := j.WebhookEvents.PruneBefore(ctx, now.Add(-webhookRetention))
	if err != nil {
		return res, fmt.Errorf("prune webhook events: %w", err)
	}
	res.WebhookEvents = events

	counters, err := j.Usage.PruneBefore(ctx, domain.UsagePeriod(now.AddDate(0, -usageRetention, 0)))
	if err != nil {
		return res, fmt.Errorf("prune usage counters: %w", err)
	}
	res.UsageCounters = counters

	j.Logger.Info().
		Int64("webhook_events", res.WebhookEvents).
		Int64("usage_counters", res.UsageCounters).
		Msg("worker: cleanup finished")
	return res, nil
}
