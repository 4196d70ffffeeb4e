package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mosaic/internal/adapter/repo"
	"mosaic/internal/email"
	"mosaic/internal/infra"
	"mosaic/internal/metrics"
	"mosaic/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	mtr := metrics.New()

	var sender email.Sender = email.LogSender{Logger: logger}
	if cfg.ResendAPIKey != "" {
		resendSender, err := email.NewResendSender(email.ResendOptions{
			APIKey: cfg.ResendAPIKey,
			Retry:  infra.DefaultRetryPolicy(),
			Logger: logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: failed to configure resend")
		}
		sender = resendSender
	} else {
		logger.Warn().Msg("worker: RESEND_API_KEY missing, emails are logged instead of sent")
	}
	mailer, err := email.NewMailer(sender, email.MailerOptions{
		From:      cfg.EmailFrom,
		PublicURL: cfg.PublicURL,
		Logger:    logger,
		OnSend:    mtr.Email,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure mailer")
	}

	jobs := &worker.Jobs{
		Logger:        logger,
		Subscriptions: repo.NewSubscriptionRepository(runner),
		Profiles:      repo.NewProfileRepository(runner),
		Usage:         repo.NewUsageRepository(runner),
		WebhookEvents: repo.NewWebhookEventRepository(runner),
		Mailer:        mailer,
		Recorder:      mtr,
	}
	scheduler, err := worker.NewScheduler(ctx, jobs, worker.Specs{
		GraceSweep: cfg.WorkerGraceSweep,
		Cleanup:    cfg.WorkerCleanup,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid schedule")
	}

	var metricsServer *http.Server
	if addr := cfg.WorkerMetricsAddr; addr != "" {
		metricsServer = &http.Server{Addr: addr, Handler: mtr.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("worker: metrics server failed")
			}
		}()
	}

	scheduler.Start()
	logger.Info().
		Str("grace_sweep", cfg.WorkerGraceSweep).
		Str("cleanup", cfg.WorkerCleanup).
		Msg("worker: started")

	<-ctx.Done()

	// Wait for running jobs before closing the pool.
	<-scheduler.Stop().Done()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	logger.Info().Msg("worker: stopped")
}
