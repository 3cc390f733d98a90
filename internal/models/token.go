package models

import "time"

// CachedToken is a bearer token together with the moment it was obtained.
// Timestamp is stored in unix milliseconds.
type CachedToken struct {
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
}

// NewCachedToken stamps token with obtainedAt.
func NewCachedToken(token string, obtainedAt time.Time) CachedToken {
	return CachedToken{Token: token, Timestamp: obtainedAt.UnixMilli()}
}

// ObtainedAt returns the acquisition time.
func (c CachedToken) ObtainedAt() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// FreshAt reports whether the token is younger than maxAge at now.
func (c CachedToken) FreshAt(now time.Time, maxAge time.Duration) bool {
	return c.Token != "" && now.Sub(c.ObtainedAt()) < maxAge
}

// Preferences holds onboarding state and user defaults.
type Preferences struct {
	OnboardingComplete bool   `json:"onboardingComplete"`
	DefaultTimeZone    string `json:"defaultTimeZone,omitempty"`
}
