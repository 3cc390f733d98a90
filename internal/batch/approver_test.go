package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"quickcal/internal/models"
	"quickcal/internal/store"
)

type fakeCreator struct {
	fail     map[string]error
	received []string
}

func (f *fakeCreator) CreateEvent(_ context.Context, event models.CalendarEvent) (*calendar.Event, error) {
	f.received = append(f.received, event.Summary)
	if err := f.fail[event.Summary]; err != nil {
		return nil, err
	}
	return &calendar.Event{Id: fmt.Sprintf("id-%d", len(f.received)), Summary: event.Summary}, nil
}

func newApprover(events EventCreator, s store.Store, dryRun bool) *Approver {
	return NewApprover(slog.New(slog.NewTextHandler(io.Discard, nil)), events, s, dryRun)
}

func evt(uid, summary string) models.CalendarEvent {
	return models.CalendarEvent{
		UID:     uid,
		Summary: summary,
		Start:   models.EventDateTime{DateTime: "2026-10-21T09:00:00Z"},
		End:     models.EventDateTime{DateTime: "2026-10-21T10:00:00Z"},
	}
}

func ledger(t *testing.T, s store.Store) Ledger {
	t.Helper()
	b, err := s.Get(context.Background(), LedgerKey)
	require.NoError(t, err)
	l := Ledger{}
	require.NoError(t, json.Unmarshal(b, &l))
	return l
}

func TestApproveSubmitsAllAndRecordsLedger(t *testing.T) {
	s := store.NewMemory()
	creator := &fakeCreator{}

	res, err := newApprover(creator, s, false).Approve(context.Background(), []models.CalendarEvent{
		evt("u1", "Dentist"), evt("u2", "Standup"),
	})
	require.NoError(t, err)

	assert.Len(t, res.Created, 2)
	assert.Equal(t, []string{"Dentist", "Standup"}, creator.received)
	assert.Equal(t, Ledger{"u1": "id-1", "u2": "id-2"}, ledger(t, s))
}

func TestApproveSkipsAlreadySubmitted(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Set(context.Background(), LedgerKey, []byte(`{"u1":"old"}`)))
	creator := &fakeCreator{}

	res, err := newApprover(creator, s, false).Approve(context.Background(), []models.CalendarEvent{
		evt("u1", "Dentist"), evt("u2", "Standup"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"Standup"}, creator.received)
	assert.Equal(t, "old", ledger(t, s)["u1"])
}

func TestApproveContinuesPastFailures(t *testing.T) {
	s := store.NewMemory()
	forbidden := errors.New("Forbidden")
	creator := &fakeCreator{fail: map[string]error{"Dentist": forbidden}}

	res, err := newApprover(creator, s, false).Approve(context.Background(), []models.CalendarEvent{
		evt("u1", "Dentist"), evt("u2", "Standup"),
	})

	assert.ErrorIs(t, err, forbidden)
	assert.ErrorContains(t, err, "Dentist")
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Created, 1)
	assert.Equal(t, Ledger{"u2": "id-2"}, ledger(t, s))
}

func TestApproveDryRun(t *testing.T) {
	s := store.NewMemory()
	creator := &fakeCreator{}

	res, err := newApprover(creator, s, true).Approve(context.Background(), []models.CalendarEvent{evt("u1", "Dentist")})
	require.NoError(t, err)

	assert.Empty(t, res.Created)
	assert.Empty(t, creator.received)
	assert.False(t, s.Has(LedgerKey))
}

func TestApproveCorruptLedger(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Set(context.Background(), LedgerKey, []byte("nope")))

	_, err := newApprover(&fakeCreator{}, s, false).Approve(context.Background(), []models.CalendarEvent{evt("u1", "x")})
	assert.Error(t, err)
}
