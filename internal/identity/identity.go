// Package identity maps verified JWT claims to engine users. Token
// verification itself happens upstream; the engine only consumes the result.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tessera-io/tessera/internal/config"
	"github.com/tessera-io/tessera/model"
)

// UserFromClaims builds a User from verified JWT claims, using the claim
// paths from configuration (subject_id, email, roles).
func UserFromClaims(claims jwt.MapClaims, paths map[string]string) (*model.User, error) {
	path := func(key, fallback string) string {
		if p, ok := paths[key]; ok && p != "" {
			return p
		}
		return fallback
	}

	user := &model.User{Claims: map[string]any(claims)}
	if sub, ok := claims[path("subject_id", "sub")].(string); ok {
		user.SubjectID = sub
	}
	if email, ok := claims[path("email", "email")].(string); ok {
		user.Email = email
	}
	switch roles := claims[path("roles", "roles")].(type) {
	case []string:
		user.Roles = roles
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				user.Roles = append(user.Roles, s)
			}
		}
	}

	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("identity: invalid claims: %w", err)
	}
	return user, nil
}

// TokenProvider verifies bearer tokens with a caller-supplied key function
// and maps their claims to users.
type TokenProvider struct {
	cfg     config.IdentityConfig
	keyFunc jwt.Keyfunc
}

// NewTokenProvider creates a token-backed user provider.
func NewTokenProvider(cfg config.IdentityConfig, keyFunc jwt.Keyfunc) *TokenProvider {
	return &TokenProvider{cfg: cfg, keyFunc: keyFunc}
}

// UserFromToken parses and verifies a token string and maps it to a User.
func (p *TokenProvider) UserFromToken(tokenStr string) (*model.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(p.cfg.Algorithms),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if p.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.cfg.Issuer))
	}
	if p.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.cfg.Audience))
	}

	token, err := jwt.Parse(tokenStr, p.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("identity: parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("identity: invalid token")
	}
	return UserFromClaims(claims, p.cfg.ClaimPaths)
}

// StaticProvider serves one fixed user. For tests and local development.
type StaticProvider struct {
	User *model.User
}

// CurrentUser implements model.UserProvider.
func (p StaticProvider) CurrentUser(context.Context) (*model.User, error) {
	if p.User == nil {
		return nil, fmt.Errorf("identity: no user configured")
	}
	return p.User, nil
}

// ContextProvider reads the user previously attached to the context.
type ContextProvider struct{}

// CurrentUser implements model.UserProvider.
func (ContextProvider) CurrentUser(ctx context.Context) (*model.User, error) {
	if u := model.UserFrom(ctx); u != nil {
		return u, nil
	}
	return nil, fmt.Errorf("identity: no user in context")
}
