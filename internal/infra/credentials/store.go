// Package credentials keeps AI provider API keys in integration_tokens so
// operators can rotate them without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"mosaic/internal/infra"
	"mosaic/internal/sqlinline"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Providers lists every provider a key can be stored for.
var Providers = []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini}

// Entry describes a stored key without exposing it.
type Entry struct {
	Provider  string
	UpdatedAt time.Time
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for provider, empty when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, normalize(provider))
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the configured key and falls back to the stored one.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	return s.Token(ctx, provider)
}

// SetToken stores key for provider along with free-form properties.
func (s *Store) SetToken(ctx context.Context, provider, key string, props map[string]any) error {
	provider = normalize(provider)
	if !slices.Contains(Providers, provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	return s.upsert(ctx, provider, key, props)
}

// List returns the providers that have a stored key.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListIntegrationProviders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Provider, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
