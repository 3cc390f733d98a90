package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickcal/internal/google"
	"quickcal/internal/models"
)

// A submitter running where only the relay can hand out tokens behaves like
// the direct one, 401 retry included.
func TestSubmitterWithRelayedTokens(t *testing.T) {
	var mu sync.Mutex
	var auths []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		first := len(auths) == 1
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if first {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":401,"message":"Invalid Credentials"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	}))
	defer api.Close()

	tokens := &stubTokens{token: "relayed"}
	c := newPair(t, tokens, &stubEvents{})
	submitter := google.NewSubmitter(discardLogger(), c, google.API{Endpoint: api.URL + "/calendar/v3/"}, "")

	created, err := submitter.CreateEvent(context.Background(), models.CalendarEvent{
		Summary: "Dentist",
		Start:   models.EventDateTime{DateTime: "2026-10-21T09:00:00Z"},
		End:     models.EventDateTime{DateTime: "2026-10-21T10:00:00Z"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", created.Id)

	calls, invalidated := tokens.snapshot()
	assert.Equal(t, []bool{true, true}, calls)
	assert.Equal(t, 1, invalidated)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, auths, 2)
	for _, a := range auths {
		assert.True(t, strings.HasSuffix(a, "relayed"))
	}
}
