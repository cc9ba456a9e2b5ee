package stryder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/apexstats/apex-tracker/internal/network"
	"github.com/apexstats/apex-tracker/internal/respawn"
	"github.com/apexstats/apex-tracker/internal/stryder"
	"github.com/stretchr/testify/require"
)

const userInfoBody = `{"userInfo": {"uid": 1000123456, "hardware": "PC", "name": "GoshDarnedHero",
	"online": 1, "cdata2": 725342087, "cdata12": 1, "cdata13": 502, "cdata23": 10, "cdata24": 20, "cdata31": 0}}`

func TestClientFetch(t *testing.T) {
	var (
		lastHeader http.Header
		lastQuery  url.Values
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		lastHeader = r.Header
		lastQuery = r.URL.Query()
		_, _ = w.Write([]byte(userInfoBody))
	})
	mux.HandleFunc("/limited", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/slowdown", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Slow down!"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"userInfo": {"uid": 0}}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/slow", func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	httpClient := network.NewClient(250 * time.Millisecond)

	result := stryder.New(httpClient, server.URL+"/ok", "").Fetch(t.Context(), 1000123456, respawn.PlatformPC)
	require.Equal(t, stryder.OutcomeOK, result.Outcome)
	require.NoError(t, result.Err)
	require.Equal(t, int64(1000123456), result.Snapshot.UID)
	require.True(t, result.Snapshot.Online)
	require.Equal(t, 5, result.Snapshot.Trackers[0].Decoded())
	require.NotZero(t, result.Snapshot.Timestamp)
	require.Equal(t, stryder.DefaultUserAgent, lastHeader.Get("User-Agent"))
	require.Equal(t, "1000123456", lastQuery.Get("uid"))
	require.Equal(t, "user-getinfo", lastQuery.Get("qt"))
	require.Equal(t, "PC", lastQuery.Get("hardware"))

	cases := []struct {
		path    string
		outcome stryder.Outcome
		err     error
	}{
		{path: "/limited", outcome: stryder.OutcomeRateLimited, err: stryder.ErrRateLimited},
		{path: "/slowdown", outcome: stryder.OutcomeRateLimited, err: stryder.ErrRateLimited},
		{path: "/missing", outcome: stryder.OutcomeNotFound, err: stryder.ErrNotFound},
		{path: "/empty", outcome: stryder.OutcomeNotFound, err: stryder.ErrNotFound},
		{path: "/broken", outcome: stryder.OutcomeTimeout, err: stryder.ErrUnavailable},
		{path: "/slow", outcome: stryder.OutcomeTimeout, err: stryder.ErrUnavailable},
	}

	for _, testCase := range cases {
		t.Run(testCase.path, func(t *testing.T) {
			res := stryder.New(httpClient, server.URL+testCase.path, "").Fetch(t.Context(), 1, respawn.PlatformPC)
			require.Equal(t, testCase.outcome, res.Outcome, res.Outcome.String())
			require.ErrorIs(t, res.Err, testCase.err)
		})
	}
}

func TestClientFetchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	address := server.URL
	server.Close()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()

	result := stryder.New(network.NewClient(time.Second), address, "").Fetch(ctx, 1, respawn.PlatformPC)
	require.Equal(t, stryder.OutcomeTimeout, result.Outcome)
}
