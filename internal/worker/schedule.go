package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Specs holds the cron expressions for each job. Descriptors such as
// "@hourly" are accepted.
type Specs struct {
	GraceSweep string
	Cleanup    string
	// Timeout bounds a single run; zero means 10 minutes.
	Timeout time.Duration
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// NewScheduler registers the jobs on a UTC cron. Runs still in progress are
// skipped and panics are recovered. ctx is the parent of every run.
func NewScheduler(ctx context.Context, jobs *Jobs, specs Specs) (*cron.Cron, error) {
	logger := cronLogger{logger: jobs.Logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	timeout := specs.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	run := func(name string, fn func(context.Context) error) func() {
		return func() {
			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := fn(runCtx); err != nil {
				jobs.Logger.Error().Err(err).Str("job", name).Msg("worker: job failed")
			}
		}
	}

	entries := []struct {
		name string
		spec string
		fn   func(context.Context) error
	}{
		{JobGraceSweep, specs.GraceSweep, func(ctx context.Context) error {
			_, err := jobs.SweepGracePeriods(ctx)
			return err
		}},
		{JobCleanup, specs.Cleanup, func(ctx context.Context) error {
			_, err := jobs.Cleanup(ctx)
			return err
		}},
	}
	for _, e := range entries {
		if e.spec == "" {
			jobs.Logger.Warn().Str("job", e.name).Msg("worker: job has no schedule, disabled")
			continue
		}
		if _, err := c.AddFunc(e.spec, run(e.name, e.fn)); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", e.name, e.spec, err)
		}
	}
	return c, nil
}
