// Package cache implements a very trivial filesystem cache for upstream documents.
package cache

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"
)

const (
	// How long until a entry is considered stale.
	DefaultMaxAge = time.Hour * 24 * 7
)

var (
	ErrCacheMiss = errors.New("cache miss error")
	errCacheSet  = errors.New("cache set error")
	errCacheDir  = errors.New("cache dir error")
)

type Cache interface {
	Get(name string) ([]byte, error)
	Set(name string, content []byte) error
}

// Filesystem implements the default filesystem based Cache interface.
type Filesystem struct {
	cacheDir string
	maxAge   time.Duration
}

func New(cachePath string, maxAge time.Duration) (Filesystem, error) {
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		slog.Error("Failed to make cache root", slog.String("error", err.Error()),
			slog.String("path", cachePath))

		return Filesystem{}, errors.Join(err, errCacheDir)
	}

	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	return Filesystem{cacheDir: cachePath, maxAge: maxAge}, nil
}

func (c Filesystem) Set(name string, content []byte) error {
	file, errFile := os.Create(c.fullPath(name))
	if errFile != nil {
		return errors.Join(errFile, errCacheSet)
	}

	defer func(file io.Closer) {
		if err := file.Close(); err != nil {
			slog.Error("Failed to close cache file", slog.String("error", err.Error()))
		}
	}(file)

	if _, err := file.Write(content); err != nil {
		return errors.Join(err, errCacheSet)
	}

	return nil
}

func (c Filesystem) Get(name string) ([]byte, error) {
	fullPath := c.fullPath(name)

	stat, errStat := os.Stat(fullPath)
	if errStat != nil {
		return nil, errors.Join(errStat, ErrCacheMiss)
	}

	if time.Since(stat.ModTime()) > c.maxAge {
		if err := os.Remove(fullPath); err != nil {
			return nil, errors.Join(err, ErrCacheMiss)
		}

		return nil, ErrCacheMiss
	}

	body, errRead := os.ReadFile(fullPath)
	if errRead != nil {
		return nil, errors.Join(errRead, ErrCacheMiss)
	}

	return body, nil
}

func (c Filesystem) fullPath(name string) string {
	return path.Join(c.cacheDir, strings.ReplaceAll(name, "/", "_"))
}
