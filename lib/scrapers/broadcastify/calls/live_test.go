package calls

import (
	"bcfy-backend/lib/scrapers/broadcastify/core"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLiveServer serves canned deltas: one per request, in order,
// then empty deltas forever.
type fakeLiveServer struct {
	t       *testing.T
	deltas  []string
	polls   []map[string]string
	handler http.HandlerFunc
}

func newFakeLiveServer(t *testing.T, deltas ...string) *fakeLiveServer {
	f := &fakeLiveServer{t: t, deltas: deltas}
	f.handler = func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calls/ajax/update", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		err := r.ParseForm()
		require.NoError(t, err)

		form := map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		f.polls = append(f.polls, form)

		if len(f.deltas) == 0 {
			fmt.Fprint(w, `{"calls": []}`)
			return
		}
		next := f.deltas[0]
		f.deltas = f.deltas[1:]
		fmt.Fprint(w, next)
	}
	return f
}

func callsJSON(startTimes ...int64) string {
	records := make([]map[string]any, len(startTimes))
	for i, ts := range startTimes {
		records[i] = map[string]any{
			"call_tg":  2101,
			"ts":       ts,
			"systemId": 5000,
			"filename": fmt.Sprintf("call-%d", ts),
		}
	}
	out, _ := json.Marshal(map[string]any{"calls": records})
	return string(out)
}

func newTestSession(t *testing.T, server *httptest.Server) *LiveSession {
	t.Helper()
	session, err := NewLiveSession(testCoreClient(t, server.URL), testLimiter(), 5000, 2101)
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func TestPollBeforeInit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("uninitialized session must not hit the network")
	}))
	defer server.Close()

	session := newTestSession(t, server)
	_, err := session.Poll(context.Background())
	require.ErrorIs(t, err, ErrSessionNotInitialized)
}

func TestSessionRequiresCredential(t *testing.T) {
	client, err := core.NewClient(context.Background(), core.ClientOptions{
		BaseUrl: "http://127.0.0.1:1",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewLiveSession(client, testLimiter(), 5000, 2101)
	require.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestInitAndPollCursor(t *testing.T) {
	fake := newFakeLiveServer(t,
		callsJSON(100, 150, 200),
		`{"calls": []}`,
		callsJSON(250),
	)
	server := httptest.NewServer(fake.handler)
	defer server.Close()

	session := newTestSession(t, server)
	ctx := context.Background()

	backlog, err := session.InitSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, backlog, 3)
	require.Equal(t, int64(200), session.Position())

	// empty delta leaves the cursor untouched
	delta, err := session.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, delta)
	require.Equal(t, int64(200), session.Position())

	delta, err = session.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, delta, 1)
	require.Equal(t, int64(250), session.Position())

	// accumulated list is the concatenation of all non-empty deltas
	accumulated := session.Calls()
	require.Len(t, accumulated, 4)
	starts := make([]int64, len(accumulated))
	for i, c := range accumulated {
		starts[i] = c.StartTime
	}
	require.Equal(t, []int64{100, 150, 200, 250}, starts)

	// the wire protocol: init vs incremental mode, cursor as lastUpdate
	require.Equal(t, "gettalkgroups", fake.polls[0]["mode"])
	require.Equal(t, "getupdate", fake.polls[1]["mode"])
	require.Equal(t, "200", fake.polls[1]["lastUpdate"])
	require.Equal(t, "200", fake.polls[2]["lastUpdate"])
	require.Equal(t, "5000", fake.polls[0]["systemId"])
	require.Equal(t, "2101", fake.polls[0]["talkgroupId"])
	require.NotEmpty(t, fake.polls[0]["sessionToken"])
}

func TestInitExactlyOnce(t *testing.T) {
	fake := newFakeLiveServer(t, callsJSON(100))
	server := httptest.NewServer(fake.handler)
	defer server.Close()

	session := newTestSession(t, server)
	ctx := context.Background()

	_, err := session.InitSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = session.InitSession(ctx)
	require.ErrorIs(t, err, ErrSessionInitialized)
}

func TestInitFailureLeavesUninitialized(t *testing.T) {
	failing := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, callsJSON(100))
	}))
	defer server.Close()

	session := newTestSession(t, server)
	ctx := context.Background()

	_, err := session.InitSession(ctx)
	require.ErrorIs(t, err, ErrUpstream)

	_, err = session.Poll(ctx)
	require.ErrorIs(t, err, ErrSessionNotInitialized)

	// init may be retried until it succeeds
	failing = false
	backlog, err := session.InitSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, backlog, 1)
}

func TestObservers(t *testing.T) {
	fake := newFakeLiveServer(t,
		callsJSON(100, 150),
		callsJSON(200),
		`{"calls": []}`,
	)
	server := httptest.NewServer(fake.handler)
	defer server.Close()

	session := newTestSession(t, server)
	ctx := context.Background()

	var order []string
	var deltas [][]Call
	session.On(EventUpdate, func(delta []Call) {
		order = append(order, "first")
		deltas = append(deltas, delta)
	})
	session.On(EventUpdate, func(delta []Call) {
		order = append(order, "second")
	})

	_, err := session.InitSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = session.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = session.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// observers fire per poll, in registration order, with the delta
	// only — never the accumulated list
	require.Equal(t, []string{"first", "second", "first", "second", "first", "second"}, order)
	require.Len(t, deltas, 3)
	require.Len(t, deltas[0], 2)
	require.Len(t, deltas[1], 1)
	require.Empty(t, deltas[2])
	require.Equal(t, int64(200), deltas[1][0].StartTime)
}

func TestMissingCallsKeyIsEmptyDelta(t *testing.T) {
	fake := newFakeLiveServer(t,
		callsJSON(100),
		`{"serverTime": 1733229000}`,
	)
	server := httptest.NewServer(fake.handler)
	defer server.Close()

	session := newTestSession(t, server)
	ctx := context.Background()

	_, err := session.InitSession(ctx)
	if err != nil {
		t.Fatal(err)
	}

	delta, err := session.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, delta)
	require.Equal(t, int64(100), session.Position())
}
