package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"quickcal/internal/auth"
	"quickcal/internal/models"
)

// genericFailure is the message used when an API error carries none.
const genericFailure = "request failed"

// APIError is a non-2xx answer from the Calendar API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return genericFailure
	}
	return e.Message
}

// API locates the Calendar API. The zero value talks to the primary
// calendar on the public endpoint.
type API struct {
	CalendarID string
	Endpoint   string            // Base URL override, mostly for tests
	Transport  http.RoundTripper // Defaults to http.DefaultTransport
}

// service creates a Calendar service that authenticates every request with token.
func (a API) service(ctx context.Context, token string) (*calendar.Service, error) {
	client := &http.Client{Transport: &bearerTransport{Token: token, Transport: a.Transport}}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if a.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.Endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

func (a API) calendarID() string {
	if a.CalendarID == "" {
		return "primary"
	}
	return a.CalendarID
}

// Prober validates tokens by listing at most one event.
type Prober struct {
	api API
}

// NewProber creates a Prober for api.
func NewProber(api API) *Prober {
	return &Prober{api: api}
}

// Validate implements auth.Validator.
func (p *Prober) Validate(ctx context.Context, token string) (bool, error) {
	svc, err := p.api.service(ctx, token)
	if err != nil {
		return false, err
	}

	_, err = svc.Events.List(p.api.calendarID()).MaxResults(1).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("validation probe failed: %w", err)
	}
	return true, nil
}

// Submitter creates calendar events, re-authenticating once if the API
// rejects the token.
type Submitter struct {
	logger *slog.Logger
	tokens auth.TokenSource
	api    API
	prefix string
}

// NewSubmitter creates a Submitter. prefix is prepended to every summary.
func NewSubmitter(logger *slog.Logger, tokens auth.TokenSource, api API, prefix string) *Submitter {
	return &Submitter{
		logger: logger,
		tokens: tokens,
		api:    api,
		prefix: prefix,
	}
}

// CreateEvent creates event and returns the resource the API sent back.
// A 401 answer invalidates the cached token and the request is retried
// exactly once with a freshly acquired one.
func (s *Submitter) CreateEvent(ctx context.Context, event models.CalendarEvent) (*calendar.Event, error) {
	event = event.WithSummaryPrefix(s.prefix)

	token, err := s.tokens.GetToken(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	created, err := s.insert(ctx, token, event)
	if isUnauthorized(err) {
		s.logger.Info("Calendar API rejected the token, re-authenticating")
		if err := s.tokens.Invalidate(ctx); err != nil {
			return nil, err
		}
		token, err = s.tokens.GetToken(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}
		created, err = s.insert(ctx, token, event)
	}
	if err != nil {
		return nil, toAPIError(err)
	}

	s.logger.Info("Created calendar event", "id", created.Id, "summary", created.Summary)
	return created, nil
}

func (s *Submitter) insert(ctx context.Context, token string, event models.CalendarEvent) (*calendar.Event, error) {
	svc, err := s.api.service(ctx, token)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Creating calendar event", "calendarID", s.api.calendarID(), "summary", event.Summary)
	return svc.Events.Insert(s.api.calendarID(), toAPIEvent(event)).Context(ctx).Do()
}

func isUnauthorized(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}

// toAPIError turns a Calendar API error into an *APIError and wraps
// anything else, typically a transport failure.
func toAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return fmt.Errorf("failed to create event: %w", err)
}

// toAPIEvent converts the internal event to the Calendar API representation.
func toAPIEvent(e models.CalendarEvent) *calendar.Event {
	return &calendar.Event{
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Start: &calendar.EventDateTime{
			DateTime: e.Start.DateTime,
			TimeZone: e.Start.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: e.End.DateTime,
			TimeZone: e.End.TimeZone,
		},
	}
}
