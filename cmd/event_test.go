package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"quickcal/internal/batch"
	"quickcal/internal/models"
	"quickcal/internal/relay"
	"quickcal/internal/store"
)

func TestParseTime(t *testing.T) {
	got, err := parseTime("2026-10-21T09:00:00Z", "")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)))

	got, err = parseTime("2026-10-21 09:00", "Europe/Lisbon")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-21T09:00:00+01:00", got.Format(time.RFC3339))

	_, err = parseTime("", "")
	assert.Error(t, err)

	_, err = parseTime("2026-10-21 09:00", "Mars/Olympus")
	assert.Error(t, err)

	_, err = parseTime("tomorrow at nine", "UTC")
	assert.Error(t, err)
}

func TestCreatedEventPrint(t *testing.T) {
	var buf bytes.Buffer
	(&createdEvent{&calendar.Event{Id: "abc", Summary: "📅 Dentist", HtmlLink: "https://calendar.example/abc"}}).print(&buf)

	assert.Equal(t, "Created \"📅 Dentist\" (abc)\n  https://calendar.example/abc\n", buf.String())
}

func TestSetupLogger(t *testing.T) {
	assert.True(t, setupLogger("debug").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, setupLogger("warn").Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, setupLogger("bogus").Enabled(context.Background(), slog.LevelInfo))
}

func TestCreatedEventExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "created.ics")
	ev := &createdEvent{&calendar.Event{
		Id:      "abc",
		Summary: "📅 Dentist",
		Start:   &calendar.EventDateTime{DateTime: "2026-10-21T09:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2026-10-21T10:00:00Z"},
	}}

	require.NoError(t, ev.export(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "BEGIN:VEVENT")
	assert.Contains(t, string(b), "UID:abc")

	assert.Error(t, ev.export(t.TempDir()), "a directory is not a writable file")
}

type coordinatorTokens struct{}

func (coordinatorTokens) GetToken(context.Context, bool) (string, error) { return "tok", nil }
func (coordinatorTokens) Invalidate(context.Context) error { return nil }

type coordinatorEvents struct {
	mu       sync.Mutex
	received []string
}

func (c *coordinatorEvents) CreateEvent(_ context.Context, event models.CalendarEvent) (*calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, event.Summary)
	return &calendar.Event{Id: "id-" + event.Summary, Summary: event.Summary}, nil
}

func TestImportEventsOverRelay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := &coordinatorEvents{}
	srv := httptest.NewServer(relay.NewServer(logger, coordinatorTokens{}, events).Handler())
	t.Cleanup(srv.Close)

	approver := batch.NewApprover(logger, relay.NewClient(logger, srv.URL, srv.Client()), store.NewMemory(), false)
	var out bytes.Buffer
	err := importEvents(context.Background(), approver, []models.CalendarEvent{
		{UID: "a", Summary: "Dentist"},
		{UID: "b", Summary: "Standup"},
		{UID: "a", Summary: "Dentist"},
	}, &out)
	require.NoError(t, err)

	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Equal(t, []string{"Dentist", "Standup"}, events.received, "repeated UID within one run is skipped")
	assert.Equal(t, "Created \"Dentist\" (id-Dentist)\nCreated \"Standup\" (id-Standup)\n", out.String())
}
