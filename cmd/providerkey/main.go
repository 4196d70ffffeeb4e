package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"mosaic/internal/infra"
	"mosaic/internal/infra/credentials"
)

var envKeys = map[string]string{
	credentials.ProviderOpenAI:    "OPENAI_API_KEY",
	credentials.ProviderAnthropic: "ANTHROPIC_API_KEY",
	credentials.ProviderGemini:    "GEMINI_API_KEY",
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		modelFlag    string
		listFlag     bool
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the selected provider (falls back to the provider's environment variable)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderOpenAI, "AI provider to configure ("+strings.Join(credentials.Providers, ", ")+")")
	flag.StringVar(&modelFlag, "model", "", "optional default model recorded with the key")
	flag.BoolVar(&listFlag, "list", false, "list providers with a stored key and exit")
	flag.Parse()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Sprintf("failed to create pool: %v", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if listFlag {
		entries, err := store.List(ctx)
		if err != nil {
			exitWithError(fmt.Sprintf("failed to list provider keys: %v", err))
		}
		if len(entries) == 0 {
			fmt.Println("no provider keys stored")
			return
		}
		for _, e := range entries {
			fmt.Printf("%-10s updated %s\n", e.Provider, e.UpdatedAt.UTC().Format(time.RFC3339))
		}
		return
	}

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if !slices.Contains(credentials.Providers, provider) {
		exitWithError(fmt.Sprintf("unsupported provider %q", providerFlag))
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envKeys[provider]))
	}
	if key == "" {
		exitWithError(fmt.Sprintf("%s API key is required via -key or %s", provider, envKeys[provider]))
	}

	props := map[string]any{"stored_by": "providerkey"}
	if model := strings.TrimSpace(modelFlag); model != "" {
		props["model"] = model
	}
	if err := store.SetToken(ctx, provider, key, props); err != nil {
		exitWithError(fmt.Sprintf("failed to persist %s api key: %v", provider, err))
	}

	fmt.Printf("%s API key stored successfully\n", provider)
}

func exitWithError(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
