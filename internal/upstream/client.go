package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxBody   = 10 << 20
	defaultUserAgent = "api-gateway/1.0"
)

var (
	errBadStatus   = errors.New("unexpected status")
	errInvalidJSON = errors.New("response body is not valid JSON")
	errBodyTooBig  = errors.New("response body exceeds size limit")
)

// Options configures a Client.
type Options struct {
	// Timeout bounds the whole exchange, including reading the body.
	Timeout time.Duration
	// MaxBodyBytes caps how much of the response is read. Defaults to 10 MiB.
	MaxBodyBytes int64
	UserAgent    string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client performs single-attempt GET requests against the upstream API.
type Client struct {
	http      *http.Client
	maxBody   int64
	userAgent string
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		maxBody:   maxBody,
		userAgent: ua,
	}
}

// Fetch issues GET url and returns the response body once it has been
// checked to be a JSON document. No retries are attempted.
func (c *Client) Fetch(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w %s", errBadStatus, resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: errBodyTooBig}
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: errInvalidJSON}
	}

	return json.RawMessage(body), nil
}
