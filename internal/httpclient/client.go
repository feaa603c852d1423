// Package httpclient is the shared transport for platform APIs. It
// owns the behavior every platform client relies on: bearer/basic
// authentication, link-header and cursor pagination, unbounded
// rate-limit retry, 404-as-absence, and the GraphQL envelope contract.
package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Sleeper abstracts blocking waits so rate-limit tests can observe
// requested durations instead of actually sleeping.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Auth produces the Authorization header for a request. Exactly one
// constructor should be used per client.
type Auth func(req *http.Request)

// TokenAuth authenticates with a token scheme, e.g. "token <t>" for
// GitHub or "Bot <t>" for Discord-style APIs.
func TokenAuth(scheme, token string) Auth {
	return func(req *http.Request) {
		req.Header.Set("Authorization", scheme+" "+token)
	}
}

// BasicAuth authenticates with HTTP basic credentials.
func BasicAuth(username, password string) Auth {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

// Client issues authenticated JSON requests against one platform API.
type Client struct {
	base      string
	auth      Auth
	userAgent string
	http      *http.Client
	sleeper   Sleeper
	log       *slog.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client (tests, custom
// timeouts).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleeper overrides the rate-limit sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithLogger overrides the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a Client rooted at baseURL. Relative request URLs are
// resolved against it; absolute URLs (link-header continuations) are
// used as-is.
func New(baseURL, userAgent string, auth Auth, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimSuffix(baseURL, "/") + "/",
		auth:      auth,
		userAgent: userAgent,
		http:      &http.Client{Timeout: 30 * time.Second},
		sleeper:   realSleeper{},
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a fatal non-success response. Rate limits never reach
// callers (retried internally) and 404s surface as absence, so any
// StatusError a caller sees aborts that platform's pipeline.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, strings.TrimSpace(e.Body))
}

// IsAuthError reports whether err is an authentication or permission
// failure. These are never retried.
func IsAuthError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
	}
	return false
}

// request performs one HTTP exchange, transparently retrying on 429.
// The retry loop is deliberately unbounded: rate limiting is always
// transient for a periodic batch job, and the server tells us exactly
// how long to wait.
func (c *Client) request(method, url string, body []byte, contentType string) (*http.Response, error) {
	full := url
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		full = c.base + strings.TrimPrefix(url, "/")
	}
	for {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequest(method, full, reader)
		if err != nil {
			return nil, fmt.Errorf("%s %s: build request: %w", method, full, err)
		}
		if c.auth != nil {
			c.auth(req)
		}
		req.Header.Set("User-Agent", c.userAgent)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		c.log.Debug("http request", "method", method, "url", full)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, full, err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			resp.Body.Close()
			c.log.Warn("rate limited, sleeping before retry", "url", full, "wait", wait)
			c.sleeper.Sleep(wait)
			continue
		}
		return resp, nil
	}
}

// retryAfter reads the server-supplied wait from a 429 response. A
// missing or malformed header falls back to one second rather than
// hammering the endpoint in a tight loop.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

// Do issues a request and decodes the JSON response into out (which
// may be nil for write calls whose body is irrelevant). Any non-2xx
// status is fatal and carries the status code and body.
func (c *Client) Do(method, url string, body any, out any) error {
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return err
	}
	resp, err := c.request(method, url, payload, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, method, url); err != nil {
		return err
	}
	return decodeInto(resp.Body, out, method, url)
}

// DoOption is Do for endpoints where absence is a valid outcome: a 404
// returns (false, nil) instead of an error, so callers can branch on
// presence (e.g. a team that does not exist yet).
func (c *Client) DoOption(method, url string, out any) (bool, error) {
	resp, err := c.request(method, url, nil, "")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := checkStatus(resp, method, url); err != nil {
		return false, err
	}
	return true, decodeInto(resp.Body, out, method, url)
}

// PostForm issues a form-encoded POST (Zulip-style APIs) and returns
// the raw response for callers that need status-specific handling.
// The caller owns closing the body.
func (c *Client) PostForm(url string, form map[string]string) (*http.Response, error) {
	values := make([]string, 0, len(form))
	for k, v := range form {
		values = append(values, urlEncode(k)+"="+urlEncode(v))
	}
	body := []byte(strings.Join(values, "&"))
	return c.request(http.MethodPost, url, body, "application/x-www-form-urlencoded")
}

func encodeBody(body any) ([]byte, string, error) {
	if body == nil {
		return nil, "", nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("encode request body: %w", err)
	}
	return payload, "application/json", nil
}

func checkStatus(resp *http.Response, method, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Method: method, URL: url, Code: resp.StatusCode, Body: string(body)}
}

func decodeInto(r io.Reader, out any, method, url string) error {
	if out == nil {
		io.Copy(io.Discard, r)
		return nil
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, url, err)
	}
	return nil
}

func urlEncode(s string) string {
	var b strings.Builder
	for _, r := range []byte(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			b.WriteByte(r)
		case r == ' ':
			b.WriteString("%20")
		default:
			fmt.Fprintf(&b, "%%%02X", r)
		}
	}
	return b.String()
}
