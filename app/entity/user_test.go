package entity

import (
	"database/sql"
	"errors"
	"testing"
	"time"
)

func TestNewLocalUser(t *testing.T) {
	now := time.Now()
	user := NewLocalUser("  Jane.Doe@Example.COM ", "Jane", "Doe", "hash", now)

	if user.Email != "jane.doe@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Provider != ProviderLocal {
		t.Fatalf("expected local provider, got %q", user.Provider)
	}
	if user.IsEmailVerified {
		t.Fatalf("local users must start unverified")
	}
	if err := user.Validate(); err != nil {
		t.Fatalf("expected valid user, got %v", err)
	}
}

func TestNewGoogleUser(t *testing.T) {
	user := NewGoogleUser("jane@example.com", "Jane", "", "google-sub-1", time.Now())

	if !user.IsEmailVerified {
		t.Fatalf("google users must be pre-verified")
	}
	if user.PasswordHash.Valid {
		t.Fatalf("google users must not carry a password hash")
	}
	// Last name is optional for non-local providers.
	if err := user.Validate(); err != nil {
		t.Fatalf("expected valid user, got %v", err)
	}
}

func TestValidateProviderInvariants(t *testing.T) {
	now := time.Now()

	local := NewLocalUser("a@x.com", "A", "B", "hash", now)
	local.PasswordHash = sql.NullString{}
	if err := local.Validate(); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}

	local = NewLocalUser("a@x.com", "A", "", "hash", now)
	if err := local.Validate(); !errors.Is(err, ErrLastNameRequired) {
		t.Fatalf("expected ErrLastNameRequired, got %v", err)
	}

	google := NewGoogleUser("a@x.com", "A", "", "sub", now)
	google.PasswordHash = sql.NullString{String: "hash", Valid: true}
	if err := google.Validate(); !errors.Is(err, ErrPasswordNotAllowed) {
		t.Fatalf("expected ErrPasswordNotAllowed, got %v", err)
	}

	google = NewGoogleUser("a@x.com", "A", "", "", now)
	if err := google.Validate(); !errors.Is(err, ErrProviderIDRequired) {
		t.Fatalf("expected ErrProviderIDRequired, got %v", err)
	}

	unknown := NewLocalUser("a@x.com", "A", "B", "hash", now)
	unknown.Provider = "github"
	if err := unknown.Validate(); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}

	upper := NewLocalUser("a@x.com", "A", "B", "hash", now)
	upper.Email = "A@X.com"
	if err := upper.Validate(); !errors.Is(err, ErrEmailNotNormalized) {
		t.Fatalf("expected ErrEmailNotNormalized, got %v", err)
	}

	badGrant := NewLocalUser("a@x.com", "A", "B", "hash", now)
	badGrant.GrantType = "FOREVER"
	if err := badGrant.Validate(); !errors.Is(err, ErrUnknownGrantType) {
		t.Fatalf("expected ErrUnknownGrantType, got %v", err)
	}
}

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Now()
	token := &RefreshToken{ExpiresAt: now.Add(time.Hour)}

	if !token.Usable(now) {
		t.Fatalf("expected fresh token to be usable")
	}
	if token.Usable(now.Add(2 * time.Hour)) {
		t.Fatalf("expected expired token to be unusable")
	}

	token.Revoked = true
	if token.Usable(now) {
		t.Fatalf("expected revoked token to be unusable")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  USER@Example.Com  "); got != "user@example.com" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}
