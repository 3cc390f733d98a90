package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSummaryPrefixCopies(t *testing.T) {
	ev := CalendarEvent{Summary: "Dentist"}

	prefixed := ev.WithSummaryPrefix("📅 ")

	assert.Equal(t, "📅 Dentist", prefixed.Summary)
	assert.Equal(t, "Dentist", ev.Summary)
}

func TestWithDefaultTimeZone(t *testing.T) {
	ev := CalendarEvent{
		Start: EventDateTime{DateTime: "2026-10-20T09:00:00Z"},
		End:   EventDateTime{DateTime: "2026-10-20T10:00:00Z", TimeZone: "UTC"},
	}

	got := ev.WithDefaultTimeZone("Europe/Lisbon")

	assert.Equal(t, "Europe/Lisbon", got.Start.TimeZone)
	assert.Equal(t, "UTC", got.End.TimeZone)
	assert.Equal(t, ev, ev.WithDefaultTimeZone(""))
}

func TestCalendarEventJSONShape(t *testing.T) {
	ev := CalendarEvent{
		UID:     "local-only",
		Summary: "Standup",
		Start:   EventDateTime{DateTime: "2026-10-20T09:00:00Z"},
		End:     EventDateTime{DateTime: "2026-10-20T09:15:00Z"},
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"summary": "Standup",
		"start": {"dateTime": "2026-10-20T09:00:00Z"},
		"end": {"dateTime": "2026-10-20T09:15:00Z"}
	}`, string(b))
}

func TestCachedTokenFreshness(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	maxAge := 50 * time.Minute

	tests := []struct {
		name  string
		age   time.Duration
		token string
		fresh bool
	}{
		{"ten minutes old", 10 * time.Minute, "tok", true},
		{"just under max age", maxAge - time.Millisecond, "tok", true},
		{"exactly max age", maxAge, "tok", false},
		{"an hour old", 60 * time.Minute, "tok", false},
		{"empty token", time.Minute, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCachedToken(tt.token, now.Add(-tt.age))
			assert.Equal(t, tt.fresh, c.FreshAt(now, maxAge))
		})
	}
}

func TestCachedTokenWireFormat(t *testing.T) {
	c := NewCachedToken("abc", time.UnixMilli(1760000000123))

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc","timestamp":1760000000123}`, string(b))
}
