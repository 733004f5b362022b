package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tessera-io/tessera/internal/config"
	"github.com/tessera-io/tessera/model"
)

func TestUserFromClaimsDefaultPaths(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":   "u1",
		"email": "u1@example.com",
		"roles": []any{"requester", "reviewer"},
	}
	user, err := UserFromClaims(claims, nil)
	if err != nil {
		t.Fatalf("UserFromClaims: %v", err)
	}
	if user.SubjectID != "u1" || user.Email != "u1@example.com" {
		t.Errorf("user = %+v", user)
	}
	if len(user.Roles) != 2 || user.Roles[0] != "requester" || user.Roles[1] != "reviewer" {
		t.Errorf("Roles = %v", user.Roles)
	}
}

func TestUserFromClaimsCustomPaths(t *testing.T) {
	claims := jwt.MapClaims{
		"oid":    "u2",
		"mail":   "u2@example.com",
		"groups": []any{"admin"},
	}
	paths := map[string]string{"subject_id": "oid", "email": "mail", "roles": "groups"}
	user, err := UserFromClaims(claims, paths)
	if err != nil {
		t.Fatalf("UserFromClaims: %v", err)
	}
	if user.SubjectID != "u2" || user.Email != "u2@example.com" {
		t.Errorf("user = %+v", user)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "admin" {
		t.Errorf("Roles = %v", user.Roles)
	}
}

func TestUserFromClaimsStringSliceRoles(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u3", "roles": []string{"viewer"}}
	user, err := UserFromClaims(claims, nil)
	if err != nil {
		t.Fatalf("UserFromClaims: %v", err)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "viewer" {
		t.Errorf("Roles = %v", user.Roles)
	}
}

func TestUserFromClaimsSkipsNonStringRoles(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u4", "roles": []any{"real", 42, true}}
	user, err := UserFromClaims(claims, nil)
	if err != nil {
		t.Fatalf("UserFromClaims: %v", err)
	}
	if len(user.Roles) != 1 || user.Roles[0] != "real" {
		t.Errorf("Roles = %v", user.Roles)
	}
}

func TestUserFromClaimsMissingSubject(t *testing.T) {
	claims := jwt.MapClaims{"email": "nobody@example.com"}
	if _, err := UserFromClaims(claims, nil); err == nil {
		t.Fatal("expected error for claims without a subject")
	}
}

func TestTokenProviderRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	cfg := config.IdentityConfig{
		Issuer:     "https://login.example.com",
		Audience:   "tessera",
		Algorithms: []string{"HS256"},
	}
	provider := NewTokenProvider(cfg, func(*jwt.Token) (any, error) { return secret, nil })

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "u1",
		"roles": []string{"requester"},
		"iss":   "https://login.example.com",
		"aud":   "tessera",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	user, err := provider.UserFromToken(signed)
	if err != nil {
		t.Fatalf("UserFromToken: %v", err)
	}
	if user.SubjectID != "u1" {
		t.Errorf("SubjectID = %q, want u1", user.SubjectID)
	}
}

func TestTokenProviderRejectsWrongIssuer(t *testing.T) {
	secret := []byte("test-secret")
	cfg := config.IdentityConfig{
		Issuer:     "https://login.example.com",
		Algorithms: []string{"HS256"},
	}
	provider := NewTokenProvider(cfg, func(*jwt.Token) (any, error) { return secret, nil })

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"iss": "https://rogue.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := provider.UserFromToken(signed); err == nil {
		t.Fatal("expected error for wrong issuer")
	}
}

func TestTokenProviderRequiresExpiry(t *testing.T) {
	secret := []byte("test-secret")
	cfg := config.IdentityConfig{Algorithms: []string{"HS256"}}
	provider := NewTokenProvider(cfg, func(*jwt.Token) (any, error) { return secret, nil })

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := provider.UserFromToken(signed); err == nil {
		t.Fatal("expected error for a token without exp")
	}
}

func TestStaticProvider(t *testing.T) {
	want := &model.User{SubjectID: "u1"}
	user, err := StaticProvider{User: want}.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user != want {
		t.Error("CurrentUser returned a different user")
	}

	if _, err := (StaticProvider{}).CurrentUser(context.Background()); err == nil {
		t.Fatal("expected error for an empty provider")
	}
}

func TestContextProvider(t *testing.T) {
	want := &model.User{SubjectID: "u1"}
	ctx := model.WithUser(context.Background(), want)

	user, err := ContextProvider{}.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if user != want {
		t.Error("CurrentUser returned a different user")
	}

	if _, err := (ContextProvider{}).CurrentUser(context.Background()); err == nil {
		t.Fatal("expected error when no user is attached")
	}
}
