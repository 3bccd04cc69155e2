package identity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrMissingProvider indicates an identity without a provider slug.
	ErrMissingProvider = errors.New("external identity missing provider")
	// ErrMissingExternalID indicates the OAuth client returned an empty user id.
	ErrMissingExternalID = errors.New("external identity missing user id")
	// ErrProviderNotFound indicates an unknown provider slug.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrProfileFetch indicates the OAuth client could not produce a profile.
	ErrProfileFetch = errors.New("provider profile unavailable")
	// ErrDuplicateLink indicates the identity is already linked.
	ErrDuplicateLink = errors.New("identity already linked")
	// ErrLinkWriteConflict indicates a uniqueness violation at commit time.
	ErrLinkWriteConflict = errors.New("identity link write conflict")
	// ErrLastIdentity indicates a refused detach of the only identity.
	ErrLastIdentity = errors.New("cannot detach last identity")
	// ErrDetachFailed indicates the link could not be removed.
	ErrDetachFailed = errors.New("identity detach failed")
	// ErrLinkNotFound indicates the account has no link for the provider.
	ErrLinkNotFound = errors.New("identity link not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrStateInvalid indicates a missing, forged or expired OAuth state.
	ErrStateInvalid = errors.New("oauth state invalid")
)

// Reason is a stable, render-independent code for user-facing rejections.
type Reason string

const (
	ReasonAlreadyAttached Reason = "already_attached"
	ReasonClaimedByOther  Reason = "claimed_by_other"
	ReasonWriteConflict   Reason = "write_conflict"
	ReasonNoUserData      Reason = "no_user_data"
	ReasonLastIdentity    Reason = "last_identity"
	ReasonDetachFailed    Reason = "detach_failed"
)

// ProviderNotFoundError reports an unknown provider slug.
type ProviderNotFoundError struct {
	Slug string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrProviderNotFound, e.Slug)
}

func (e *ProviderNotFoundError) Unwrap() error { return ErrProviderNotFound }

// ProfileFetchError wraps failures of the OAuth exchange or profile fetch.
type ProfileFetchError struct {
	Provider string
	Reason   Reason
	Cause    error
}

func (e *ProfileFetchError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: provider=%s", ErrProfileFetch, e.Provider)
	}
	return fmt.Sprintf("%s: provider=%s: %v", ErrProfileFetch, e.Provider, e.Cause)
}

func (e *ProfileFetchError) Unwrap() error {
	if e.Cause == nil {
		return ErrProfileFetch
	}
	return errors.Join(ErrProfileFetch, e.Cause)
}

// DuplicateLinkError is returned when linking is refused because the
// identity or provider is already taken. Conflict marks the variant raised
// by the storage uniqueness constraints rather than the resolver pre-check.
type DuplicateLinkError struct {
	Provider  string
	AccountID uuid.UUID
	Reason    Reason
	Redirect  string
	Conflict  bool
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("%s: provider=%s reason=%s", ErrDuplicateLink, e.Provider, e.Reason)
}

func (e *DuplicateLinkError) Is(target error) bool {
	switch target {
	case ErrDuplicateLink:
		return true
	case ErrLinkWriteConflict:
		return e.Conflict
	}
	return false
}

// LastIdentityError refuses detaching the only identity of an account
// without an email.
type LastIdentityError struct {
	Provider  string
	AccountID uuid.UUID
}

func (e *LastIdentityError) Error() string {
	return fmt.Sprintf("%s: provider=%s account=%s", ErrLastIdentity, e.Provider, e.AccountID)
}

func (e *LastIdentityError) Unwrap() error { return ErrLastIdentity }

// DetachFailedError reports that the link row could not be removed.
type DetachFailedError struct {
	Provider  string
	AccountID uuid.UUID
	Cause     error
}

func (e *DetachFailedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: provider=%s", ErrDetachFailed, e.Provider)
	}
	return fmt.Sprintf("%s: provider=%s: %v", ErrDetachFailed, e.Provider, e.Cause)
}

func (e *DetachFailedError) Unwrap() error {
	if e.Cause == nil {
		return ErrDetachFailed
	}
	return errors.Join(ErrDetachFailed, e.Cause)
}

// ProviderOf extracts the provider slug carried by a domain error.
func ProviderOf(err error) string {
	var (
		notFound  *ProviderNotFoundError
		fetch     *ProfileFetchError
		duplicate *DuplicateLinkError
		last      *LastIdentityError
		detach    *DetachFailedError
	)
	switch {
	case errors.As(err, &duplicate):
		return duplicate.Provider
	case errors.As(err, &last):
		return last.Provider
	case errors.As(err, &detach):
		return detach.Provider
	case errors.As(err, &fetch):
		return fetch.Provider
	case errors.As(err, &notFound):
		return notFound.Slug
	}
	return ""
}
