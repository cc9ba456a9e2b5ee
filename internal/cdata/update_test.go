package cdata_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apexstats/apex-tracker/internal/cache"
	"github.com/apexstats/apex-tracker/internal/cdata"
	"github.com/apexstats/apex-tracker/internal/network"
	"github.com/stretchr/testify/require"
)

func TestUpdater(t *testing.T) {
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)

			return
		}
		_, _ = w.Write([]byte(`{"100": ["Wraith", "character_wraith"], "200": ["Kills", "gcard_tracker_kills"]}`))
	}))
	t.Cleanup(server.Close)

	fsCache, errCache := cache.New(t.TempDir(), time.Hour)
	require.NoError(t, errCache)

	outPath := filepath.Join(t.TempDir(), "catalog", "cdata.json")
	updater := cdata.NewUpdater(network.NewClient(5*time.Second), fsCache, server.URL)

	catalog, errUpdate := updater.Update(t.Context(), outPath)
	require.NoError(t, errUpdate)
	require.Equal(t, 2, catalog.Len())

	loaded, errLoad := cdata.LoadFile(outPath)
	require.NoError(t, errLoad)
	require.Equal(t, catalog.Version(), loaded.Version())

	// Upstream outage falls back to the cached download.
	failing.Store(true)
	cached, errCached := updater.Update(t.Context(), outPath)
	require.NoError(t, errCached)
	require.Equal(t, 2, cached.Len())
}
