// Package relay lets a context without direct access to credentials ask the
// coordinator for tokens and event creation over a local message channel.
package relay

import (
	"context"
	"encoding/json"

	"google.golang.org/api/calendar/v3"

	"quickcal/internal/models"
)

// Message types.
const (
	TypeGetAuthToken    = "GET_AUTH_TOKEN"
	TypeCreateEvent     = "CREATE_EVENT"
	TypeInvalidateToken = "INVALIDATE_TOKEN"
)

// Message is a request sent to the coordinator.
type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers a Message. Exactly one of Token, Data or Error is set,
// except for INVALIDATE_TOKEN which answers with an empty response.
type Response struct {
	ID    string          `json:"id,omitempty"`
	Token string          `json:"token,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// TokenRequest is the GET_AUTH_TOKEN payload.
type TokenRequest struct {
	Interactive bool `json:"interactive"`
}

// EventCreator creates calendar events. google.Submitter and Client
// both satisfy it.
type EventCreator interface {
	CreateEvent(ctx context.Context, event models.CalendarEvent) (*calendar.Event, error)
}
