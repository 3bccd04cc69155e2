// Package identity holds the account/identity-link domain model and the
// decision logic that maps a verified external identity onto a local account.
package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is a local user. Email is the primary email used for matching
// and may be empty.
type Account struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email,omitempty" db:"email"`
	Name      string    `json:"name,omitempty" db:"name"`
	AvatarURL string    `json:"avatar_url,omitempty" db:"avatar_url"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasEmail reports whether the account can be recovered by email.
func (a *Account) HasEmail() bool {
	return a != nil && strings.TrimSpace(a.Email) != ""
}

// ExternalIdentity is the verified profile produced by one OAuth callback.
type ExternalIdentity struct {
	ProviderSlug   string
	ExternalUserID string
	Email          string
	Name           string
	Nickname       string
	AvatarURL      string
	Attributes     map[string]any
}

// Normalize trims identifiers and lowercases the email.
func (e ExternalIdentity) Normalize() ExternalIdentity {
	e.ProviderSlug = strings.TrimSpace(strings.ToLower(e.ProviderSlug))
	e.ExternalUserID = strings.TrimSpace(e.ExternalUserID)
	e.Email = NormalizeEmail(e.Email)
	e.Name = strings.TrimSpace(e.Name)
	e.Nickname = strings.TrimSpace(e.Nickname)
	e.AvatarURL = strings.TrimSpace(e.AvatarURL)
	return e
}

// Validate enforces the upstream contract of the OAuth client.
func (e ExternalIdentity) Validate() error {
	if e.ProviderSlug == "" {
		return ErrMissingProvider
	}
	if e.ExternalUserID == "" {
		return ErrMissingExternalID
	}
	return nil
}

// DisplayName picks the best available human name.
func (e ExternalIdentity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Nickname
}

// Link maps an external identity to exactly one account.
type Link struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	AccountID      uuid.UUID  `json:"account_id" db:"account_id"`
	ProviderSlug   string     `json:"provider" db:"provider_slug"`
	ExternalUserID string     `json:"external_user_id" db:"external_user_id"`
	Email          string     `json:"email,omitempty" db:"email"`
	Profile        Attributes `json:"profile,omitempty" db:"profile"`
	LinkedAt       time.Time  `json:"linked_at" db:"linked_at"`
}

// AccountSeed carries the identity-derived fields for a new account.
type AccountSeed struct {
	Email     string
	Name      string
	AvatarURL string
}

// SeedFrom copies account fields from the identity where present.
func SeedFrom(e ExternalIdentity) AccountSeed {
	return AccountSeed{
		Email:     e.Email,
		Name:      e.DisplayName(),
		AvatarURL: e.AvatarURL,
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
