package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	keySetTTL = time.Hour
	// minRefreshInterval limits how often an unknown kid refetches the set.
	minRefreshInterval = 30 * time.Second
	maxJWKSBytes       = 1 << 20
)

// KeySet caches the project's asymmetric signing keys published at
// /auth/v1/.well-known/jwks.json. An unknown kid refetches the set at most
// once per minRefreshInterval.
type KeySet struct {
	url        string
	httpClient *http.Client
	fetchMu    sync.Mutex
	mu         sync.RWMutex
	keys       map[string]crypto.PublicKey
	fetched    time.Time
	attempted  time.Time
	lastErr    error
	now        func() time.Time
}

// NewKeySet reads keys from the JWKS endpoint of projectURL.
func NewKeySet(projectURL string, httpClient *http.Client) (*KeySet, error) {
	base := strings.TrimRight(strings.TrimSpace(projectURL), "/")
	if base == "" {
		return nil, errors.New("auth url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{
		url:        base + "/auth/v1/.well-known/jwks.json",
		httpClient: httpClient,
		keys:       map[string]crypto.PublicKey{},
		now:        time.Now,
	}, nil
}

// Key returns the public key for kid.
func (k *KeySet) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if key, ok := k.cached(kid, true); ok {
		return key, nil
	}
	err := k.refresh(ctx)
	if key, ok := k.cached(kid, false); ok {
		// A stale key is served while the endpoint is down.
		return key, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

func (k *KeySet) cached(kid string, freshOnly bool) (crypto.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if freshOnly && k.now().Sub(k.fetched) >= keySetTTL {
		return nil, false
	}
	key, ok := k.keys[kid]
	return key, ok
}

// refresh refetches the set unless another attempt ran within
// minRefreshInterval, in which case that attempt's error is returned.
func (k *KeySet) refresh(ctx context.Context) error {
	k.fetchMu.Lock()
	defer k.fetchMu.Unlock()

	k.mu.RLock()
	throttled := !k.attempted.IsZero() && k.now().Sub(k.attempted) < minRefreshInterval
	lastErr := k.lastErr
	k.mu.RUnlock()
	if throttled {
		return lastErr
	}

	keys, err := k.fetch(ctx)
	k.mu.Lock()
	defer k.mu.Unlock()
	k.attempted = k.now()
	k.lastErr = err
	if err != nil {
		return err
	}
	k.keys = keys
	k.fetched = k.attempted
	return nil
}

func (k *KeySet) fetch(ctx context.Context) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("read jwks: %w", err)
	}
	return parseKeySet(body)
}

// parseKeySet keeps the RSA and P-256 keys of a JWKS document. Keys that do
// not parse are skipped so one bad entry does not hide the rest.
func parseKeySet(body []byte) (map[string]crypto.PublicKey, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]crypto.PublicKey, len(doc.Keys))
	for _, raw := range doc.Keys {
		key, err := jwk.ParseKey(raw)
		if err != nil {
			continue
		}
		pub, err := publicKey(key)
		if err != nil {
			continue
		}
		keys[key.KeyID()] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks has no usable keys")
	}
	return keys, nil
}

func publicKey(key jwk.Key) (crypto.PublicKey, error) {
	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("jwk %q: %w", key.KeyID(), err)
	}
	switch pub := raw.(type) {
	case *rsa.PublicKey:
		if pub.N == nil || pub.N.Sign() <= 0 || pub.E <= 0 {
			return nil, errors.New("invalid rsa key")
		}
		return pub, nil
	case *ecdsa.PublicKey:
		if name := pub.Curve.Params().Name; name != elliptic.P256().Params().Name {
			return nil, fmt.Errorf("unsupported curve %s", name)
		}
		if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
			return nil, errors.New("point is not on curve")
		}
		return pub, nil
	}
	return nil, fmt.Errorf("unsupported key type %s", key.KeyType())
}
