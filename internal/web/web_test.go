package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/config"
	"planner/internal/ics"
	"planner/internal/identity"
	"planner/internal/invitee"
	"planner/internal/persist/boltdb"
	"planner/internal/planner"
	"planner/internal/store"
	"planner/internal/timespan"
)

type emptyRepo struct{}

func (emptyRepo) Load() ([]byte, error) { return nil, boltdb.ErrNotFound }
func (emptyRepo) Save([]byte) error     { return nil }

func newTestServer(t *testing.T, auth *config.BasicAuthConfig, origins ...string) http.Handler {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Timezone = loc.String()
	cfg.CalendarName = "Team events"
	cfg.Users = []config.UserConfig{{ID: "U1234", Name: "user0", Email: "foo@bar.com"}}
	cfg.BasicAuth = auth
	cfg.CORSOrigins = origins

	svc, err := planner.Open(emptyRepo{}, identity.FromConfig(cfg.Users))
	require.NoError(t, err)

	user0 := invitee.Identified("U1234")
	require.NoError(t, svc.Update(func(st *store.Store) error {
		a, err := st.Events.Create("AAA111", "Wizard People")
		require.NoError(t, err)
		for _, when := range []string{"2017-11-19", "2017-11-25"} {
			_, err := a.ProposeDate(timespan.Parse(when, loc))
			require.NoError(t, err)
		}
		require.NoError(t, a.AcceptProposal(user0, 0))
		require.NoError(t, a.AcceptProposal(invitee.Freeform("frey"), 0))

		b, err := st.Events.Create("BBB222", "Board games")
		require.NoError(t, err)
		_, err = b.ProposeDate(timespan.Parse("2017-12-01T19:00", loc))
		require.NoError(t, err)
		b.Invite(user0)
		return b.Finalize(0)
	}))

	return NewServer(cfg, svc, loc).Handler()
}

func get(t *testing.T, h http.Handler, target string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func listIDs(t *testing.T, h http.Handler, target string) []string {
	t.Helper()
	rec := get(t, h, target)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp eventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	ids := make([]string, 0, len(resp.Events))
	for _, e := range resp.Events {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &config.BasicAuthConfig{Username: "admin", Password: "secret"})
	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, &config.BasicAuthConfig{Username: "admin", Password: "secret"})
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/events").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/events", "admin", "wrong").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/events", "admin", "secret").Code)
}

func TestBasicAuthDisabledWithEmptyPassword(t *testing.T) {
	h := newTestServer(t, &config.BasicAuthConfig{Username: "admin"})
	assert.Equal(t, http.StatusOK, get(t, h, "/api/events").Code)
}

func TestListEventsFilters(t *testing.T) {
	h := newTestServer(t, nil)

	assert.Equal(t, []string{"AAA111", "BBB222"}, listIDs(t, h, "/api/events"))
	assert.Equal(t, []string{"BBB222"}, listIDs(t, h, "/api/events?finalized=1"))
	assert.Equal(t, []string{"AAA111"}, listIDs(t, h, "/api/events?unfinalized=true"))
	assert.Equal(t, []string{"AAA111"}, listIDs(t, h, "/api/events?before=2017-11-20"))
	assert.Equal(t, []string{"BBB222"}, listIDs(t, h, "/api/events?after=2017-11-28"))
	assert.Equal(t, []string{"BBB222"}, listIDs(t, h, "/api/events?name=board"))
	assert.Equal(t, []string{"AAA111", "BBB222"}, listIDs(t, h, "/api/events?invited=U1234"))
	assert.Equal(t, []string{"AAA111"}, listIDs(t, h, "/api/events?invited=name:frey"))
}

func TestListEventsBadDate(t *testing.T) {
	h := newTestServer(t, nil)
	rec := get(t, h, "/api/events?before=someday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unable to parse a timestamp")
}

func TestGetEvent(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, "/api/events/aaa111")
	require.Equal(t, http.StatusOK, rec.Code)
	var dto eventDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "Wizard People", dto.Name)
	assert.False(t, dto.Finalized)
	assert.Nil(t, dto.Final)
	require.Len(t, dto.Proposals, 2)
	assert.True(t, dto.Proposals[0].Leading)
	assert.Equal(t, 2, dto.Proposals[0].Yes)
	assert.True(t, dto.Proposals[1].AllDay)
	assert.Equal(t, []participantDTO{
		{Key: "id:U1234", Name: "user0"},
		{Key: "name:frey", Name: "frey"},
	}, dto.Invitees)

	rec = get(t, h, "/api/events/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOPE")
}

func TestCalendarFeed(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, "/calendar.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))

	entries, err := ics.Read(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "CONFIRMED", entries[2].Status)

	rec = get(t, h, "/calendar.ics?finalized=1")
	entries, err = ics.Read(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "BBB222", entries[0].EventID)
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &config.BasicAuthConfig{Username: "admin", Password: "secret"}, "https://calendar.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/calendar.ics", nil)
	req.Header.Set("Origin", "https://calendar.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://calendar.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
