package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"

	"quickcal/internal/auth"
	"quickcal/internal/models"
)

// RemoteError is an error the coordinator reported while carrying out a request.
type RemoteError struct {
	Message string
	err     error
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap returns the auth sentinel the message was recognized as, if any.
func (e *RemoteError) Unwrap() error {
	return e.err
}

// Client delegates token and event operations to a coordinator. It
// satisfies auth.TokenSource and EventCreator, so it can stand in for the
// direct implementations.
type Client struct {
	logger  *slog.Logger
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the coordinator at addr, given either as
// host:port or as a base URL. A nil httpClient uses http.DefaultClient.
func NewClient(logger *slog.Logger, addr string, httpClient *http.Client) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		logger:  logger,
		baseURL: strings.TrimSuffix(addr, "/"),
		http:    httpClient,
	}
}

// GetToken asks the coordinator for a token. Credential errors keep their
// auth sentinel, so callers can tell a declined consent from a lost coordinator.
func (c *Client) GetToken(ctx context.Context, interactive bool) (string, error) {
	resp, err := c.send(ctx, TypeGetAuthToken, TokenRequest{Interactive: interactive})
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", credentialError(resp.Error)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: no token in response", auth.ErrDelegationFailed)
	}
	return resp.Token, nil
}

// Invalidate asks the coordinator to forget its cached token.
func (c *Client) Invalidate(ctx context.Context) error {
	resp, err := c.send(ctx, TypeInvalidateToken, struct{}{})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s", auth.ErrDelegationFailed, resp.Error)
	}
	return nil
}

// CreateEvent asks the coordinator to create event. Errors raised by the
// coordinator come back as *RemoteError carrying its message.
func (c *Client) CreateEvent(ctx context.Context, event models.CalendarEvent) (*calendar.Event, error) {
	resp, err := c.send(ctx, TypeCreateEvent, event)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &RemoteError{Message: resp.Error}
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no data in response", auth.ErrDelegationFailed)
	}

	created := &calendar.Event{}
	if err := json.Unmarshal(resp.Data, created); err != nil {
		return nil, fmt.Errorf("%w: malformed event: %w", auth.ErrDelegationFailed, err)
	}
	return created, nil
}

// credentialErrors are matched longest first, since their messages share prefixes.
var credentialErrors = []error{
	auth.ErrTokenInvalidAfterRefresh,
	auth.ErrTokenInvalid,
	auth.ErrNoTokenReceived,
}

// credentialError turns a coordinator's token error message back into the
// matching auth sentinel. Anything else is a delegation failure.
func credentialError(msg string) error {
	for _, sentinel := range credentialErrors {
		if msg == sentinel.Error() || strings.HasPrefix(msg, sentinel.Error()+": ") {
			return &RemoteError{Message: msg, err: sentinel}
		}
	}
	return fmt.Errorf("%w: %s", auth.ErrDelegationFailed, msg)
}

// send performs one request/response round trip. Any failure to complete
// the round trip is reported as auth.ErrDelegationFailed.
func (c *Client) send(ctx context.Context, msgType string, payload any) (*Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrDelegationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Relaying message", "id", msg.ID, "type", msgType)
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrDelegationFailed, err)
	}
	defer res.Body.Close()

	var resp Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response (status %d): %w", auth.ErrDelegationFailed, res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", auth.ErrDelegationFailed, res.StatusCode, resp.Error)
	}
	return &resp, nil
}
