package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	stripegw "mosaic/internal/billing/stripe"
	"mosaic/internal/domain"
	"mosaic/internal/infra"
)

var defaultAmounts = map[domain.PlanType]stripegw.PlanAmounts{
	domain.PlanPremium:    {Monthly: 1900, Yearly: 19000},
	domain.PlanEnterprise: {Monthly: 9900, Yearly: 99000},
}

func main() {
	_ = godotenv.Load()

	var (
		currencyFlag string
		yesFlag      bool
	)
	flag.StringVar(&currencyFlag, "currency", "usd", "ISO currency for the created prices")
	flag.BoolVar(&yesFlag, "yes", false, "accept default amounts without prompting")
	flag.Parse()

	key := strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY"))
	if key == "" {
		exitWithError("STRIPE_SECRET_KEY is required")
	}
	webhookSecret := strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET"))
	if webhookSecret == "" {
		// Catalog calls never verify signatures.
		webhookSecret = "whsec_setup"
	}

	in := bufio.NewReader(os.Stdin)
	if strings.HasPrefix(key, "sk_live_") && !yesFlag {
		if !confirm(in, os.Stdout, "STRIPE_SECRET_KEY is a live key. Create products in live mode?") {
			exitWithError("aborted")
		}
	}

	amounts := map[domain.PlanType]stripegw.PlanAmounts{}
	for _, plan := range domain.Catalog() {
		def, ok := defaultAmounts[plan.Type]
		if !ok {
			continue
		}
		if yesFlag {
			amounts[plan.Type] = def
			continue
		}
		amounts[plan.Type] = stripegw.PlanAmounts{
			Monthly: askAmount(in, os.Stdout, fmt.Sprintf("%s monthly price in %s minor units", plan.Name, currencyFlag), def.Monthly),
			Yearly:  askAmount(in, os.Stdout, fmt.Sprintf("%s yearly price in %s minor units", plan.Name, currencyFlag), def.Yearly),
		}
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "setup").Logger()
	gw, err := stripegw.New(stripegw.Options{SecretKey: key, WebhookSecret: webhookSecret, Logger: logger})
	if err != nil {
		exitWithError(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	prices, err := gw.EnsureCatalog(ctx, stripegw.CatalogOptions{Currency: currencyFlag, Amounts: amounts})
	if err != nil {
		exitWithError(fmt.Sprintf("failed to create catalog: %v", err))
	}

	fmt.Fprintln(os.Stderr)
	for _, p := range prices {
		state := "existing"
		if p.Created {
			state = "created"
		}
		fmt.Fprintf(os.Stderr, "%-10s %-6s %-9s %s\n", p.Plan, p.Interval, state, p.PriceID)
	}
	fmt.Fprintln(os.Stderr, "\nAdd these lines to your .env:")
	for _, p := range prices {
		fmt.Println(p.EnvLine())
	}
}

func askAmount(in *bufio.Reader, out io.Writer, label string, def int64) int64 {
	for {
		fmt.Fprintf(out, "%s [%d]: ", label, def)
		line, err := in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil && err != io.EOF {
				exitWithError(err.Error())
			}
			return def
		}
		n, convErr := strconv.ParseInt(line, 10, 64)
		if convErr == nil && n > 0 {
			return n
		}
		fmt.Fprintln(out, "enter a positive whole number")
		if err == io.EOF {
			exitWithError("invalid amount")
		}
	}
}

func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, _ := in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func exitWithError(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
