package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"mosaic/internal/adapter/repo"
	"mosaic/internal/billing"
	"mosaic/internal/domain"
	"mosaic/internal/infra"
	"mosaic/internal/subscription"
)

func main() {
	_ = godotenv.Load()

	var (
		idFlag     string
		emailFlag  string
		planFlag   string
		daysFlag   int
		revokeFlag bool
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.StringVar(&planFlag, "plan", string(domain.PlanPremium), "plan to grant (premium, enterprise)")
	flag.IntVar(&daysFlag, "days", 0, "grant length in days (<=0 grants until revoked)")
	flag.BoolVar(&revokeFlag, "revoke", false, "remove the manual grant instead of creating one")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	if userID != "" {
		if _, err := uuid.Parse(userID); err != nil {
			exitWithError(fmt.Errorf("invalid -id: %w", err))
		}
	}

	var plan domain.PlanType
	if !revokeFlag {
		p, err := domain.ParsePlanType(planFlag)
		if err != nil {
			exitWithError(err)
		}
		if !p.IsPaid() {
			exitWithError(errors.New("use -revoke to return a user to the free plan"))
		}
		plan = p
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "userplan").Logger()
	runner := infra.NewSQLRunner(pool, logger)
	profiles := repo.NewProfileRepository(runner)
	subs := repo.NewSubscriptionRepository(runner)

	var profile *domain.Profile
	if userID != "" {
		profile, err = profiles.GetByID(ctx, userID)
	} else {
		profile, err = profiles.GetByEmail(ctx, email)
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to load user: %w", err))
	}

	subID := billing.ManualSubscriptionPrefix + profile.ID
	if revokeFlag {
		if err := subs.Delete(ctx, subID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				exitWithError(fmt.Errorf("user %s has no manual grant", profile.Email))
			}
			exitWithError(fmt.Errorf("failed to revoke grant: %w", err))
		}
		fmt.Printf("Manual grant for %s (%s) revoked\n", profile.ID, profile.Email)
		printAccess(ctx, subs, profile.ID)
		return
	}

	grant := &domain.Subscription{
		ID:         subID,
		UserID:     profile.ID,
		CustomerID: profile.StripeCustomerID,
		Plan:       plan,
		Status:     domain.SubscriptionActive,
	}
	if daysFlag > 0 {
		grant.CurrentPeriodEnd = time.Now().UTC().AddDate(0, 0, daysFlag)
		grant.CancelAtPeriodEnd = true
	}
	if err := subs.Upsert(ctx, grant); err != nil {
		exitWithError(fmt.Errorf("failed to update user plan: %w", err))
	}

	fmt.Printf("User %s (%s) granted plan %s\n", profile.ID, profile.Email, plan)
	printAccess(ctx, subs, profile.ID)
}

func printAccess(ctx context.Context, subs *repo.SubscriptionRepositoryPG, userID string) {
	sub, err := subs.GetCurrentByUserID(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		exitWithError(fmt.Errorf("failed to reload subscription: %w", err))
	}
	access := subscription.Evaluate(sub, time.Now())
	fmt.Printf("effective_plan=%s\n", access.Plan)
	fmt.Printf("status=%s\n", access.Status)
	if access.CancelsAt != nil {
		fmt.Printf("ends_at=%s\n", access.CancelsAt.Format(time.RFC3339))
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
