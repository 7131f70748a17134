package calls

import (
	"bcfy-backend/lib/archivecache"
	"bcfy-backend/lib/ratelimit"
	"bcfy-backend/lib/scrapers/broadcastify/core"
	"bcfy-backend/lib/telemetry"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLimiter() *ratelimit.Limiter {
	return ratelimit.NewLimiter(map[string]time.Duration{
		ratelimit.CategoryDefault: time.Millisecond,
		ratelimit.CategoryLive:    time.Millisecond,
		ratelimit.CategoryArchive: time.Millisecond,
	})
}

func testCoreClient(t *testing.T, baseUrl string) *core.Client {
	t.Helper()
	client, err := core.NewClient(context.Background(), core.ClientOptions{
		BaseUrl:    baseUrl,
		Credential: "test-credential",
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestGetArchivedCallsCaching(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/broadcastify/calls")
	defer cleanup()

	fetches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calls/apis/archivecall.php", r.URL.Path)
		require.Equal(t, "5000-2101", r.URL.Query().Get("group"))
		require.Equal(t, "1733229000", r.URL.Query().Get("s"))

		cookie, err := r.Cookie(core.CredentialCookie)
		require.NoError(t, err)
		require.Equal(t, "test-credential", cookie.Value)

		fetches++
		fmt.Fprint(w, `{
			"start": 1733229000,
			"end": 1733230800,
			"calls": [
				{"call_tg": 2101, "ts": 1733229100, "systemId": 5000, "filename": "a", "hash": "h1"},
				{"call_tg": 2101, "ts": 1733229200, "systemId": 5000, "filename": "b", "hash": "h2"}
			]
		}`)
	}))
	defer server.Close()

	client := NewArchiveClient(
		testCoreClient(t, server.URL),
		archivecache.Open[Call](archivecache.Options{}),
		testLimiter(),
	)

	ctx := context.Background()

	// requested time is mid-bucket; the fetch goes out bucket-aligned
	window, err := client.GetArchivedCalls(ctx, 5000, 2101, 1733229725)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, window.Calls, 2)
	require.Equal(t, int64(1733229000), window.Start)
	require.Equal(t, int64(1733230800), window.End)

	again, err := client.GetArchivedCalls(ctx, 5000, 2101, 1733229000)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, window, again)
	require.Equal(t, 1, fetches, "second request must be served from cache")
}

func TestGetArchivedCallsNotAuthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should go out without a credential")
	}))
	defer server.Close()

	coreClient := testCoreClient(t, server.URL)
	coreClient.SetCredential("")

	client := NewArchiveClient(coreClient, archivecache.Open[Call](archivecache.Options{}), testLimiter())

	_, err := client.GetArchivedCalls(context.Background(), 5000, 2101, 1733229000)
	require.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestGetArchivedCallsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewArchiveClient(
		testCoreClient(t, server.URL),
		archivecache.Open[Call](archivecache.Options{}),
		testLimiter(),
	)

	_, err := client.GetArchivedCalls(context.Background(), 5000, 2101, 1733229000)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestGetArchivedCallsMissingCallsKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"start": 0, "end": 1800}`)
	}))
	defer server.Close()

	client := NewArchiveClient(
		testCoreClient(t, server.URL),
		archivecache.Open[Call](archivecache.Options{}),
		testLimiter(),
	)

	_, err := client.GetArchivedCalls(context.Background(), 5000, 2101, 1733229000)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestGetArchivedCallsFailureNotCached(t *testing.T) {
	failing := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"start": 1733229000, "end": 1733230800, "calls": []}`)
	}))
	defer server.Close()

	client := NewArchiveClient(
		testCoreClient(t, server.URL),
		archivecache.Open[Call](archivecache.Options{}),
		testLimiter(),
	)

	ctx := context.Background()
	_, err := client.GetArchivedCalls(ctx, 5000, 2101, 1733229000)
	require.ErrorIs(t, err, ErrUpstream)

	failing = false
	window, err := client.GetArchivedCalls(ctx, 5000, 2101, 1733229000)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, window.Calls)
	require.Equal(t, int64(1733229000), window.Start)
}
