package entity

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Access grant types, written by the payment collaborator and only read here.
const (
	GrantNone      = "NONE"
	GrantLifetime  = "LIFETIME"
	GrantTimeBased = "TIME_BASED"
)

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrFirstNameRequired  = errors.New("first name is required")
	ErrLastNameRequired   = errors.New("last name is required for local accounts")
	ErrPasswordRequired   = errors.New("password hash is required for local accounts")
	ErrPasswordNotAllowed = errors.New("password hash must be empty for oauth accounts")
	ErrProviderIDRequired = errors.New("provider id is required for oauth accounts")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrUnknownGrantType   = errors.New("unknown access grant type")
	ErrEmailNotNormalized = errors.New("email must be lowercase")
)

type User struct {
	ID                 uint64
	Email              string
	FirstName          string
	LastName           sql.NullString
	PasswordHash       sql.NullString
	Provider           string
	ProviderID         sql.NullString
	IsEmailVerified    bool
	VerifyTokenHash    sql.NullString
	VerifyTokenExpires sql.NullTime
	ResetTokenHash     sql.NullString
	ResetTokenExpires  sql.NullTime
	GrantType          string
	GrantStart         sql.NullTime
	GrantEnd           sql.NullTime
	GrantActive        bool
	LastPaymentAt      sql.NullTime
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewLocalUser builds an unverified password-backed account. The invalid
// combinations (local without password, oauth with password) cannot be
// produced through the constructors; Validate backstops direct mutation.
func NewLocalUser(email, firstName, lastName, passwordHash string, now time.Time) *User {
	return &User{
		Email:        NormalizeEmail(email),
		FirstName:    firstName,
		LastName:     sql.NullString{String: lastName, Valid: lastName != ""},
		PasswordHash: sql.NullString{String: passwordHash, Valid: true},
		Provider:     ProviderLocal,
		GrantType:    GrantNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewGoogleUser builds a pre-verified account owned by the Google provider.
// Such accounts never carry a password hash.
func NewGoogleUser(email, firstName, lastName, providerID string, now time.Time) *User {
	return &User{
		Email:           NormalizeEmail(email),
		FirstName:       firstName,
		LastName:        sql.NullString{String: lastName, Valid: lastName != ""},
		Provider:        ProviderGoogle,
		ProviderID:      sql.NullString{String: providerID, Valid: true},
		IsEmailVerified: true,
		GrantType:       GrantNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate enforces the provider-conditional field invariants. The
// repository rejects any write for which this fails.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmailRequired
	}
	if u.Email != NormalizeEmail(u.Email) {
		return ErrEmailNotNormalized
	}
	if strings.TrimSpace(u.FirstName) == "" {
		return ErrFirstNameRequired
	}

	switch u.GrantType {
	case GrantNone, GrantLifetime, GrantTimeBased:
	default:
		return ErrUnknownGrantType
	}

	switch u.Provider {
	case ProviderLocal:
		if !u.PasswordHash.Valid || u.PasswordHash.String == "" {
			return ErrPasswordRequired
		}
		if !u.LastName.Valid || strings.TrimSpace(u.LastName.String) == "" {
			return ErrLastNameRequired
		}
	case ProviderGoogle:
		if u.PasswordHash.Valid {
			return ErrPasswordNotAllowed
		}
		if !u.ProviderID.Valid || u.ProviderID.String == "" {
			return ErrProviderIDRequired
		}
	default:
		return ErrUnknownProvider
	}

	return nil
}

// IsLocal reports whether the account authenticates with a password.
func (u *User) IsLocal() bool {
	return u.Provider == ProviderLocal
}

// NormalizeEmail lowercases and trims an address for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Usable reports whether the token may still mint access tokens.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
