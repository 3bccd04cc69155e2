package identity

import (
	"context"
	"fmt"
)

// ActionKind enumerates the outcomes of resolving an external identity.
type ActionKind int

const (
	ActionAuthenticate ActionKind = iota + 1
	ActionLinkAndAuthenticate
	ActionCreateAndAuthenticate
	ActionLink
	ActionRejectDuplicateLink
)

func (k ActionKind) String() string {
	switch k {
	case ActionAuthenticate:
		return "authenticate"
	case ActionLinkAndAuthenticate:
		return "link_and_authenticate"
	case ActionCreateAndAuthenticate:
		return "create_and_authenticate"
	case ActionLink:
		return "link"
	case ActionRejectDuplicateLink:
		return "reject_duplicate_link"
	}
	return "unknown"
}

// Attaches reports whether executing the action writes a new link.
func (k ActionKind) Attaches() bool {
	return k == ActionLinkAndAuthenticate || k == ActionCreateAndAuthenticate || k == ActionLink
}

// Authenticates reports whether executing the action establishes a session.
func (k ActionKind) Authenticates() bool {
	return k == ActionAuthenticate || k == ActionLinkAndAuthenticate || k == ActionCreateAndAuthenticate
}

// Decision is what the resolver wants done. Account is set for every kind
// except create (Seed) and reject (Reason).
type Decision struct {
	Kind    ActionKind
	Account *Account
	Seed    AccountSeed
	Reason  Reason
}

// Lookup is the read side the resolver needs. Implementations typically
// run inside the caller's transaction.
type Lookup interface {
	FindAccountByExternalID(ctx context.Context, provider, externalID string) (*Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	IsLinkedToProvider(ctx context.Context, account *Account, provider string) (bool, error)
}

// Resolve decides what to do with a verified identity given the current
// session account (nil when anonymous). The order of checks is part of the
// contract: an existing link always wins over an email match, and email
// matching only happens for anonymous sessions.
func Resolve(ctx context.Context, current *Account, ext ExternalIdentity, lookup Lookup) (Decision, error) {
	ext = ext.Normalize()
	if err := ext.Validate(); err != nil {
		return Decision{}, err
	}

	if current == nil {
		return resolveAnonymous(ctx, ext, lookup)
	}
	return resolveAuthenticated(ctx, current, ext, lookup)
}

func resolveAnonymous(ctx context.Context, ext ExternalIdentity, lookup Lookup) (Decision, error) {
	linked, err := lookup.FindAccountByExternalID(ctx, ext.ProviderSlug, ext.ExternalUserID)
	if err != nil {
		return Decision{}, fmt.Errorf("find linked account: %w", err)
	}
	if linked != nil {
		return Decision{Kind: ActionAuthenticate, Account: linked}, nil
	}

	if ext.Email != "" {
		byEmail, err := lookup.FindAccountByEmail(ctx, ext.Email)
		if err != nil {
			return Decision{}, fmt.Errorf("find account by email: %w", err)
		}
		if byEmail != nil {
			return Decision{Kind: ActionLinkAndAuthenticate, Account: byEmail}, nil
		}
	}

	return Decision{Kind: ActionCreateAndAuthenticate, Seed: SeedFrom(ext)}, nil
}

func resolveAuthenticated(ctx context.Context, current *Account, ext ExternalIdentity, lookup Lookup) (Decision, error) {
	attached, err := lookup.IsLinkedToProvider(ctx, current, ext.ProviderSlug)
	if err != nil {
		return Decision{}, fmt.Errorf("check provider link: %w", err)
	}
	if attached {
		return Decision{Kind: ActionRejectDuplicateLink, Account: current, Reason: ReasonAlreadyAttached}, nil
	}

	owner, err := lookup.FindAccountByExternalID(ctx, ext.ProviderSlug, ext.ExternalUserID)
	if err != nil {
		return Decision{}, fmt.Errorf("find linked account: %w", err)
	}
	if owner != nil {
		return Decision{Kind: ActionRejectDuplicateLink, Account: current, Reason: ReasonClaimedByOther}, nil
	}

	return Decision{Kind: ActionLink, Account: current}, nil
}

// CheckDetach guards the last remaining identity of an account that has no
// email to recover it with.
func CheckDetach(account *Account, provider string, linkCount int) error {
	if linkCount == 1 && !account.HasEmail() {
		return &LastIdentityError{Provider: provider, AccountID: account.ID}
	}
	return nil
}
