// Package auth issues and verifies bearer tokens and carries the
// authenticated identity through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/event-portal/internal/model"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// claims is the token payload: the subject is the user id.
type claims struct {
	jwt.RegisteredClaims
	Role model.Role `json:"role"`
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed token for userID with the given role.
func (m *TokenManager) Issue(userID string, role model.Role) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role: role,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature, issuer and expiry and returns the identity it carries.
func (m *TokenManager) Verify(raw string) (model.Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return model.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := c.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return model.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return model.Identity{UserID: c.Subject, Role: role}, nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, or the zero Identity.
func IdentityFrom(ctx context.Context) model.Identity {
	id, _ := ctx.Value(identityKey{}).(model.Identity)
	return id
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
