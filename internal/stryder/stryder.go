// Package stryder queries the Respawn user-getinfo endpoint for a players live state.
package stryder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"github.com/apexstats/apex-tracker/internal/network"
	"github.com/apexstats/apex-tracker/internal/network/encoding"
	"github.com/apexstats/apex-tracker/internal/respawn"
)

const (
	DefaultUserAgent = "Respawn HTTPS/1.0"
	maxBodySize      = 1 << 20
)

var (
	ErrRateLimited = errors.New("rate limited by upstream")
	ErrNotFound    = errors.New("player not found")
	ErrUnavailable = errors.New("upstream unavailable")
	ErrResponse    = errors.New("invalid upstream response")
)

// Outcome tags the kind of result a fetch produced. Rate limiting is kept distinct from
// the other failures so only it feeds the poller backoff.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRateLimited
	OutcomeTimeout
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single fetch. Snapshot is only valid when Outcome is OutcomeOK.
type Result struct {
	Outcome  Outcome
	Snapshot respawn.Snapshot
	Err      error
}

func OK(snapshot respawn.Snapshot) Result {
	return Result{Outcome: OutcomeOK, Snapshot: snapshot}
}

func RateLimited(err error) Result {
	return Result{Outcome: OutcomeRateLimited, Err: errors.Join(err, ErrRateLimited)}
}

func Timeout(err error) Result {
	return Result{Outcome: OutcomeTimeout, Err: errors.Join(err, ErrUnavailable)}
}

func NotFound(err error) Result {
	return Result{Outcome: OutcomeNotFound, Err: errors.Join(err, ErrNotFound)}
}

// Fetcher returns one snapshot for a player.
type Fetcher interface {
	Fetch(ctx context.Context, uid int64, platform respawn.Platform) Result
}

// Client is the HTTP implementation of Fetcher.
type Client struct {
	httpClient network.HTTPDoer
	baseURL    string
	userAgent  string
	now        func() time.Time
}

func New(httpClient network.HTTPDoer, baseURL string, userAgent string) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{httpClient: httpClient, baseURL: baseURL, userAgent: userAgent, now: time.Now}
}

func (c *Client) requestURL(uid int64, platform respawn.Platform) (string, error) {
	parsed, errParse := url.Parse(c.baseURL)
	if errParse != nil {
		return "", errors.Join(errParse, ErrResponse)
	}

	query := parsed.Query()
	query.Set("qt", "user-getinfo")
	query.Set("getinfo", "1")
	query.Set("json", "1")
	query.Set("uid", strconv.FormatInt(uid, 10))
	query.Set("hardware", string(platform))
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

func (c *Client) Fetch(ctx context.Context, uid int64, platform respawn.Platform) Result {
	requestURL, errURL := c.requestURL(uid, platform)
	if errURL != nil {
		return Timeout(errURL)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if errReq != nil {
		return Timeout(errReq)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, errResp := c.httpClient.Do(req)
	if errResp != nil {
		if isTransient(errResp) {
			return Timeout(errResp)
		}

		return Timeout(errors.Join(errResp, ErrResponse))
	}

	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			slog.Error("Failed to close response body", slog.String("error", err.Error()))
		}
	}(resp.Body)

	// Captured when the response arrived so the timestamp reflects the observed state.
	timestamp := c.now().Unix()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimited(fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return NotFound(fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Timeout(fmt.Errorf("status %d", resp.StatusCode))
	}

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if errRead != nil {
		return Timeout(errRead)
	}

	return decodeBody(body, platform, timestamp)
}

func decodeBody(body []byte, platform respawn.Platform, timestamp int64) Result {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// The endpoint answers throttled clients with a plain text 200 response.
		if bytes.Contains(bytes.ToLower(trimmed), []byte("slow down")) {
			return RateLimited(errors.New(string(trimmed)))
		}

		return Timeout(ErrResponse)
	}

	response, errDecode := encoding.UnmarshalJSON[respawn.Response](bytes.NewReader(trimmed))
	if errDecode != nil {
		return Timeout(errors.Join(errDecode, ErrResponse))
	}

	if response.UserInfo == nil || response.UserInfo.UID == 0 {
		return NotFound(respawn.ErrNoUserInfo)
	}

	return OK(response.UserInfo.Snapshot(platform, timestamp))
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
