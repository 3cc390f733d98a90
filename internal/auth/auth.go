// Package auth keeps a bearer token for the calendar API: it caches the
// token, validates freshly acquired ones, and re-authenticates when a token
// is rejected.
package auth

import (
	"context"
	"errors"
)

// Credential errors. None of them are retried by the caller.
var (
	// ErrNoTokenReceived means the identity provider returned no token,
	// or the user declined consent.
	ErrNoTokenReceived = errors.New("no token received")
	// ErrTokenInvalid means a silently acquired token failed validation.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenInvalidAfterRefresh means validation still failed after a
	// forced interactive re-authentication.
	ErrTokenInvalidAfterRefresh = errors.New("token invalid after refresh")
	// ErrDelegationFailed means a request relayed to the coordinator
	// failed or came back without a token.
	ErrDelegationFailed = errors.New("delegation failed")
)

// Provider is the identity provider that hands out bearer tokens.
type Provider interface {
	// Acquire returns a token. When interactive is true the provider may
	// prompt the user for consent; otherwise it must fail fast if it has
	// no session.
	Acquire(ctx context.Context, interactive bool) (string, error)
	// Discard drops token from the provider's own cache so it is not
	// handed out again.
	Discard(ctx context.Context, token string) error
}

// Validator checks a token against the target API with a read-only probe.
// It returns (false, nil) when the API rejects the token and a non-nil
// error only when the probe itself could not be carried out.
type Validator interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// TokenSource is the token half of the core contract. Both the local
// Manager and the relay client satisfy it.
type TokenSource interface {
	GetToken(ctx context.Context, interactive bool) (string, error)
	Invalidate(ctx context.Context) error
}
