// Package prefs stores onboarding state and user defaults.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quickcal/internal/models"
	"quickcal/internal/store"
)

// Key is the store key holding the preferences.
const Key = "prefs"

// Load returns the stored preferences, or the zero value if none are stored.
func Load(ctx context.Context, s store.Store) (models.Preferences, error) {
	var p models.Preferences
	b, err := s.Get(ctx, Key)
	if errors.Is(err, store.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to load preferences: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return models.Preferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return p, nil
}

// Save replaces the stored preferences. DefaultTimeZone must be a known IANA
// zone or empty.
func Save(ctx context.Context, s store.Store, p models.Preferences) error {
	if p.DefaultTimeZone != "" {
		if _, err := time.LoadLocation(p.DefaultTimeZone); err != nil {
			return fmt.Errorf("invalid time zone %q: %w", p.DefaultTimeZone, err)
		}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.Set(ctx, Key, b); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// Update loads the preferences, applies fn and saves the result.
func Update(ctx context.Context, s store.Store, fn func(*models.Preferences)) (models.Preferences, error) {
	p, err := Load(ctx, s)
	if err != nil {
		return p, err
	}
	fn(&p)
	return p, Save(ctx, s, p)
}
