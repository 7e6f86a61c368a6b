// Package token mints the short-lived, user-scoped JWTs handed to external
// gateway bridges and to the AI agent auth path. Tokens are stateless: they
// are never stored server-side and expire on their own.
//
// Revocation lever: every token's nbf claim is pinned to SecurityFixEpoch, a
// fixed historical timestamp, not "now". Any verifier that enforces nbf will
// reject tokens minted before a security fix simply by moving the constant
// forward, which instantly invalidates every previously issued token of any
// expiry. SecurityVersion documents which fix generation produced a token.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types understood by the issuer. The audience of a minted token equals
// its type, so downstream verifiers can scope what a token may call.
const (
	TypeAgentContext    = "agent-context"
	TypeGatewayWhatsApp = "gateway-whatsapp"
	TypeGatewayTelegram = "gateway-telegram"
	TypeAPIKey          = "api-key"
)

// Issuer is the fixed iss claim on every minted token.
const Issuer = "go-message-gateway"

// SecurityVersion is the monotonic generation counter bumped together with
// SecurityFixEpoch on each global revocation.
const SecurityVersion = 2

// SecurityFixEpoch is the deployment time of the last security fix. Tokens
// claim validity from this instant (nbf), so moving it forward revokes all
// outstanding tokens at once.
var SecurityFixEpoch = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

// defaultExpiryMinutes maps a token type to its default lifetime.
var defaultExpiryMinutes = map[string]int{
	TypeAgentContext:    30,
	TypeGatewayWhatsApp: 60,
	TypeGatewayTelegram: 60,
	TypeAPIKey:          60 * 24 * 30,
}

// ErrNoSecret is returned when a token is requested but no signing secret is
// configured. Validation is lazy so environments that load secrets
// asynchronously fail at first real use, not at import time.
var ErrNoSecret = errors.New("jwt signing secret is not configured")

// User carries the minimal profile embedded in token claims.
type User struct {
	ID    string
	Email string
	Name  string
	Image string
}

// Options controls a single issuance.
type Options struct {
	// TokenType selects the audience and the default expiry.
	TokenType string
	// ExpiryMinutes overrides the per-type default when > 0.
	ExpiryMinutes int
	// TokenName labels user-named credentials (API keys). Included in claims
	// only when non-empty, never emitted as an empty field.
	TokenName string
}

// Issuer-side state: just the signing secret and a clock seam for tests.
type Minter struct {
	secret string
	now    func() time.Time
}

// NewMinter constructs a Minter. An empty secret is allowed here; Issue fails
// with ErrNoSecret when called, per the lazy-validation contract.
func NewMinter(secret string) *Minter {
	return &Minter{secret: secret, now: time.Now}
}

// WithClock overrides the issuance clock; used by tests.
func (m *Minter) WithClock(now func() time.Time) *Minter {
	m.now = now
	return m
}

// Issue mints a signed HS256 token for user according to opts.
func (m *Minter) Issue(user User, opts Options) (string, error) {
	if m.secret == "" {
		return "", ErrNoSecret
	}
	if user.ID == "" {
		return "", errors.New("token: user id is required")
	}
	if opts.TokenType == "" {
		return "", errors.New("token: token type is required")
	}

	minutes := opts.ExpiryMinutes
	if minutes <= 0 {
		if def, ok := defaultExpiryMinutes[opts.TokenType]; ok {
			minutes = def
		} else {
			minutes = 60
		}
	}

	now := m.now().UTC()
	claims := jwt.MapClaims{
		"userId":          user.ID,
		"sub":             user.ID, // duplicate for standard-compliant consumers
		"email":           user.Email,
		"name":            user.Name,
		"picture":         user.Image,
		"iat":             now.Unix(),
		"exp":             now.Add(time.Duration(minutes) * time.Minute).Unix(),
		"nbf":             SecurityFixEpoch.Unix(),
		"jti":             uuid.NewString(),
		"tokenType":       opts.TokenType,
		"aud":             opts.TokenType,
		"iss":             Issuer,
		"securityVersion": SecurityVersion,
	}
	if opts.TokenName != "" {
		claims["tokenName"] = opts.TokenName
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.secret))
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// ErrRevoked is returned by Verify for tokens minted before the current
// security-fix epoch.
var ErrRevoked = errors.New("token predates the security-fix epoch")

// Verify parses and validates a token minted by this issuer, enforcing the
// signature, exp, and nbf claims. On top of standard nbf handling it rejects
// tokens whose nbf predates SecurityFixEpoch: that is the global revocation
// lever. Bumping the epoch invalidates every earlier token regardless of exp.
func (m *Minter) Verify(raw string) (jwt.MapClaims, error) {
	if m.secret == "" {
		return nil, ErrNoSecret
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return []byte(m.secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	nbf, err := claims.GetNotBefore()
	if err != nil || nbf == nil {
		return nil, ErrRevoked
	}
	if nbf.Time.Before(SecurityFixEpoch) {
		return nil, ErrRevoked
	}
	return claims, nil
}
