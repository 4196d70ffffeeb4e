package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mosaic/internal/domain"
)

const audience = "authenticated"

// Claims is the identity carried by a verified access token.
type Claims struct {
	UserID    string
	Email     string
	Role      string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks access tokens issued by the auth backend. HS256 tokens are
// checked against the project JWT secret; RS256 and ES256 tokens against the
// project's published signing keys when a KeySet is configured.
type Verifier struct {
	secret  []byte
	keys    *KeySet
	methods []string
	timeout time.Duration
	now     func() time.Time
}

type VerifierOption func(*Verifier)

// WithKeySet accepts tokens signed with the project's asymmetric keys.
func WithKeySet(keys *KeySet) VerifierOption {
	return func(v *Verifier) { v.keys = keys }
}

func NewVerifier(secret string, opts ...VerifierOption) (*Verifier, error) {
	v := &Verifier{timeout: 5 * time.Second, now: time.Now}
	if strings.TrimSpace(secret) != "" {
		v.secret = []byte(secret)
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.secret != nil {
		v.methods = append(v.methods, jwt.SigningMethodHS256.Alg())
	}
	if v.keys != nil {
		v.methods = append(v.methods, jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg())
	}
	if len(v.methods) == 0 {
		return nil, errors.New("jwt secret or signing key set is required")
	}
	return v, nil
}

func (v *Verifier) key(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.secret, nil
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid")
		}
		ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
		defer cancel()
		return v.keys.Key(ctx, kid)
	}
	return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
}

// Verify parses and validates token. Failures wrap domain.ErrUnauthorized.
func (v *Verifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(v.methods),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(v.now),
	)
	var claims tokenClaims
	if _, err := parser.ParseWithClaims(token, &claims, v.key); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	out := &Claims{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
