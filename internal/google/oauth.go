package google

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"quickcal/internal/auth"
	"quickcal/internal/store"
)

const (
	credentialsFile = "credentials.json"
	redirectURL     = "http://127.0.0.1"

	// SessionKey holds the provider's own copy of the full OAuth token,
	// refresh token included.
	SessionKey = "google.session"
)

// OAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit credentials over a local credentials.json file.
func OAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = redirectURL
	return config, nil
}

// OAuthProvider is the direct identity provider: it refreshes a stored Google
// session silently and, when allowed, runs the consent flow on a terminal.
// Consent flows are serialized: only one prompt owns the terminal at a time.
type OAuthProvider struct {
	logger *slog.Logger
	config *oauth2.Config
	store  store.Store

	mu  sync.Mutex // guards in and out
	in  *bufio.Reader
	out io.Writer
}

// NewOAuthProvider creates a provider that prompts on out and reads the
// authorization code from in.
func NewOAuthProvider(logger *slog.Logger, config *oauth2.Config, s store.Store, in io.Reader, out io.Writer) *OAuthProvider {
	return &OAuthProvider{
		logger: logger,
		config: config,
		store:  s,
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// Acquire implements auth.Provider.
func (p *OAuthProvider) Acquire(ctx context.Context, interactive bool) (string, error) {
	session, err := p.loadSession(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		p.logger.Warn("Ignoring unreadable Google session", "error", err)
	}

	if session != nil {
		tok, err := p.refresh(ctx, session)
		if err == nil {
			return tok.AccessToken, nil
		}
		p.logger.Warn("Could not refresh Google session", "error", err)
	}

	if !interactive {
		return "", fmt.Errorf("%w: no Google session, run the 'auth' command first", auth.ErrNoTokenReceived)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// A consent flow that held the lock before us may have stored a session.
	if fresh, err := p.loadSession(ctx); err == nil && !sameSession(fresh, session) {
		if tok, err := p.refresh(ctx, fresh); err == nil {
			return tok.AccessToken, nil
		}
	}

	tok, err := p.consent(ctx)
	if err != nil {
		return "", err
	}
	if err := p.saveSession(ctx, tok); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Discard implements auth.Provider. The refresh token is kept, so the next
// Acquire refreshes instead of reusing token.
func (p *OAuthProvider) Discard(ctx context.Context, token string) error {
	session, err := p.loadSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		// An unreadable session can never hand the token out again.
		return p.store.Remove(ctx, SessionKey)
	}
	if session.AccessToken != token {
		return nil
	}

	session.AccessToken = ""
	session.Expiry = time.Time{}
	if session.RefreshToken == "" {
		return p.store.Remove(ctx, SessionKey)
	}
	return p.saveSession(ctx, session)
}

// refresh returns a valid token for session, persisting it when it changed.
func (p *OAuthProvider) refresh(ctx context.Context, session *oauth2.Token) (*oauth2.Token, error) {
	tok, err := p.config.TokenSource(ctx, session).Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, auth.ErrNoTokenReceived
	}
	if tok.AccessToken != session.AccessToken {
		p.logger.Debug("Refreshed Google session", "expiry", tok.Expiry)
		if err := p.saveSession(ctx, tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

func sameSession(a, b *oauth2.Token) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AccessToken == b.AccessToken && a.RefreshToken == b.RefreshToken
}

// consent runs the terminal consent flow. The caller must hold p.mu.
func (p *OAuthProvider) consent(ctx context.Context) (*oauth2.Token, error) {
	authURL := p.config.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(p.out, "Go to the following link in your browser, approve access, then paste "+
		"the authorization code (or the whole address you were redirected to): \n%v\n", authURL)
	fmt.Fprint(p.out, "Enter Authorization Code: ")

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}
	code := authCode(line)
	if code == "" {
		return nil, fmt.Errorf("%w: consent was not granted", auth.ErrNoTokenReceived)
	}

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, auth.ErrNoTokenReceived
	}
	p.logger.Info("Google consent granted")
	return tok, nil
}

// authCode extracts the code from user input, which is either the bare code
// or the redirect URL carrying it.
func authCode(input string) string {
	input = strings.TrimSpace(input)
	if u, err := url.Parse(input); err == nil && u.Scheme != "" {
		return u.Query().Get("code")
	}
	return input
}

func (p *OAuthProvider) loadSession(ctx context.Context) (*oauth2.Token, error) {
	b, err := p.store.Get(ctx, SessionKey)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return tok, nil
}

func (p *OAuthProvider) saveSession(ctx context.Context, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := p.store.Set(ctx, SessionKey, b); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
