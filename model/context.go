package model

import (
	"context"
	"errors"
	"fmt"
)

// User carries the identity of the caller for the lifetime of a request. It
// is immutable after construction and safe for concurrent reads. Callers are
// authenticated upstream; the engine only consumes the result.
type User struct {
	SubjectID string
	Email     string
	Roles     []string
	Claims    map[string]any
}

// Validate checks that the mandatory identity fields are present.
func (u *User) Validate() error {
	var errs []error
	if u.SubjectID == "" {
		errs = append(errs, fmt.Errorf("SubjectID is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// HasRole returns true if the user holds the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Claim returns the value of the given claim key, or nil if not present.
func (u *User) Claim(key string) any {
	if u.Claims == nil {
		return nil
	}
	return u.Claims[key]
}

// UserProvider supplies the current authenticated user. Nil user with nil
// error never occurs: unauthenticated callers are rejected upstream.
type UserProvider interface {
	CurrentUser(ctx context.Context) (*User, error)
}

type userKey struct{}

// WithUser attaches a User to the given context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom extracts the User from the context, or returns nil if not present.
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

// MustUser extracts the User from the context, panicking if it is not
// present. Safe to call on paths guaranteed to run behind authentication.
func MustUser(ctx context.Context) *User {
	u := UserFrom(ctx)
	if u == nil {
		panic("model: User not found in context")
	}
	return u
}
