package network

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/apexstats/apex-tracker/internal/network/encoding"
)

var (
	ErrRequest = errors.New("failed to perform request")
	ErrStatus  = errors.New("unexpected response status")
)

// HTTPDoer defines a common interface for HTTP clients.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient returns a http client with the dial and header timeouts bounded by timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// FetchJSON will query a json http service using a generic type for receiving results.
func FetchJSON[T any](ctx context.Context, client HTTPDoer, url string) (T, error) {
	var value T

	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if errReq != nil {
		return value, errors.Join(errReq, ErrRequest)
	}

	resp, errResp := client.Do(req)
	if errResp != nil {
		return value, errors.Join(errResp, ErrRequest)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close response body", slog.String("error", err.Error()))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Error("Unexpected response status", slog.String("url", url), slog.Int("status_code", resp.StatusCode))

		return value, ErrStatus
	}

	decoded, errDecode := encoding.UnmarshalJSON[T](resp.Body)
	if errDecode != nil {
		return value, errors.Join(errDecode, ErrRequest)
	}

	return decoded, nil
}
