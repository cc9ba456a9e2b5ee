package cdata

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/apexstats/apex-tracker/internal/cache"
	"github.com/apexstats/apex-tracker/internal/network"
	"github.com/apexstats/apex-tracker/internal/network/encoding"
)

const cacheName = "cdata_source.json"

var ErrUpdateCatalog = errors.New("failed to update cdata catalog")

// Updater downloads the community maintained cdata dump and converts it into a versioned catalog file.
type Updater struct {
	httpClient network.HTTPDoer
	cache      cache.Cache
	sourceURL  string
	now        func() time.Time
}

func NewUpdater(httpClient network.HTTPDoer, fsCache cache.Cache, sourceURL string) *Updater {
	return &Updater{httpClient: httpClient, cache: fsCache, sourceURL: sourceURL, now: time.Now}
}

// Update writes a catalog file to outPath. When the download fails, a previously cached copy of
// the source is used instead. The written file is validated by loading it before it replaces
// any existing catalog.
func (u *Updater) Update(ctx context.Context, outPath string) (*Catalog, error) {
	raw, errFetch := u.source(ctx)
	if errFetch != nil {
		return nil, errFetch
	}

	file := File{Version: u.now().UTC().Format("2006-01-02"), Entries: raw}
	body, errMarshal := encoding.MarshalJSON(file)
	if errMarshal != nil {
		return nil, errors.Join(errMarshal, ErrUpdateCatalog)
	}

	catalog, errLoad := Load(bytes.NewReader(body))
	if errLoad != nil {
		return nil, errors.Join(errLoad, ErrUpdateCatalog)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return nil, errors.Join(err, ErrUpdateCatalog)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, body, 0o600); err != nil {
		return nil, errors.Join(err, ErrUpdateCatalog)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return nil, errors.Join(err, ErrUpdateCatalog)
	}

	slog.Info("Updated cdata catalog", slog.String("path", outPath),
		slog.String("version", catalog.Version()), slog.Int("entries", catalog.Len()))

	return catalog, nil
}

func (u *Updater) source(ctx context.Context) (map[string][]string, error) {
	raw, errFetch := network.FetchJSON[map[string][]string](ctx, u.httpClient, u.sourceURL)
	if errFetch == nil {
		if body, errMarshal := encoding.MarshalJSON(raw); errMarshal == nil {
			if errSet := u.cache.Set(cacheName, body); errSet != nil {
				slog.Warn("Failed to cache cdata source", slog.String("error", errSet.Error()))
			}
		}

		return raw, nil
	}

	slog.Warn("Failed to download cdata source, trying cache", slog.String("error", errFetch.Error()))

	body, errGet := u.cache.Get(cacheName)
	if errGet != nil {
		return nil, errors.Join(errFetch, errGet, ErrUpdateCatalog)
	}

	cached, errDecode := encoding.UnmarshalJSON[map[string][]string](bytes.NewReader(body))
	if errDecode != nil {
		return nil, errors.Join(errDecode, ErrUpdateCatalog)
	}

	return cached, nil
}
