package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quickcal/internal/models"
	"quickcal/internal/store"
)

// TokenKey is the store key holding the cached token. Only Manager writes it.
const TokenKey = "auth.token"

// Manager obtains, caches, validates and invalidates the bearer token.
type Manager struct {
	logger    *slog.Logger
	store     store.Store
	provider  Provider
	validator Validator
	maxAge    time.Duration
	now       func() time.Time
}

// NewManager creates a Manager. A cached token younger than maxAge is
// returned without contacting the provider or the API.
func NewManager(logger *slog.Logger, s store.Store, provider Provider, validator Validator, maxAge time.Duration) *Manager {
	return &Manager{
		logger:    logger,
		store:     s,
		provider:  provider,
		validator: validator,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// GetToken returns a usable bearer token.
//
// A fresh cached token is returned as is. Otherwise a new token is acquired
// and validated. When validation fails in interactive mode the token is
// discarded from the provider and acquisition is retried once, interactively.
// Silent mode never retries, so it never surprises the user with a prompt.
func (m *Manager) GetToken(ctx context.Context, interactive bool) (string, error) {
	if cached, ok := m.cached(ctx); ok {
		m.logger.Debug("Using cached token", "obtainedAt", cached.ObtainedAt())
		return cached.Token, nil
	}

	m.logger.Debug("Acquiring new token", "interactive", interactive)
	token, valid, err := m.acquireAndValidate(ctx, interactive)
	if err != nil {
		return "", err
	}

	if !valid {
		if !interactive {
			return "", fmt.Errorf("%w: rejected by the calendar API", ErrTokenInvalid)
		}

		m.logger.Warn("Acquired token was rejected, re-authenticating")
		if err := m.provider.Discard(ctx, token); err != nil {
			return "", fmt.Errorf("failed to discard rejected token: %w", err)
		}

		token, valid, err = m.acquireAndValidate(ctx, true)
		if err != nil {
			return "", err
		}
		if !valid {
			return "", ErrTokenInvalidAfterRefresh
		}
	}

	if err := m.save(ctx, token); err != nil {
		return "", err
	}
	m.logger.Info("Obtained new token")
	return token, nil
}

// Invalidate forgets the cached token. It does not touch the provider's own
// cache and succeeds when nothing is cached.
func (m *Manager) Invalidate(ctx context.Context) error {
	if err := m.store.Remove(ctx, TokenKey); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	m.logger.Debug("Invalidated cached token")
	return nil
}

// Logout invalidates the cached token and drops it from the provider too.
func (m *Manager) Logout(ctx context.Context) error {
	cached, err := m.load(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("Ignoring unreadable cached token", "error", err)
	}
	if err := m.Invalidate(ctx); err != nil {
		return err
	}
	if cached.Token != "" {
		if err := m.provider.Discard(ctx, cached.Token); err != nil {
			return fmt.Errorf("failed to discard token: %w", err)
		}
	}
	return nil
}

func (m *Manager) acquireAndValidate(ctx context.Context, interactive bool) (string, bool, error) {
	token, err := m.provider.Acquire(ctx, interactive)
	if err != nil {
		if errors.Is(err, ErrNoTokenReceived) {
			return "", false, err
		}
		return "", false, fmt.Errorf("%w: %w", ErrNoTokenReceived, err)
	}
	if token == "" {
		return "", false, ErrNoTokenReceived
	}

	valid, err := m.validator.Validate(ctx, token)
	if err != nil {
		return "", false, fmt.Errorf("failed to validate token: %w", err)
	}
	return token, valid, nil
}

// cached returns the stored token if it is still inside the freshness window.
func (m *Manager) cached(ctx context.Context) (models.CachedToken, bool) {
	c, err := m.load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("Ignoring unreadable cached token", "error", err)
		}
		return models.CachedToken{}, false
	}
	return c, c.FreshAt(m.now(), m.maxAge)
}

func (m *Manager) load(ctx context.Context) (models.CachedToken, error) {
	var c models.CachedToken
	b, err := m.store.Get(ctx, TokenKey)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return models.CachedToken{}, fmt.Errorf("failed to decode cached token: %w", err)
	}
	return c, nil
}

func (m *Manager) save(ctx context.Context, token string) error {
	b, err := json.Marshal(models.NewCachedToken(token, m.now()))
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := m.store.Set(ctx, TokenKey, b); err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	return nil
}
