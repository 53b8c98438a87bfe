package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	crowdfund "github.com/goliatone/go-crowdfund"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	HeaderAuthorization  = "Authorization"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "X-Request-ID"
)

// TokenSource yields the bearer credential. It is read on every request.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string {
	if f == nil {
		return ""
	}
	return f()
}

// Option customizes the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests. A zero limit disables it.
func WithRateLimit(limit float64, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// WithIdempotencyKeys adds a content derived Idempotency-Key to writes.
func WithIdempotencyKeys(enabled bool) Option {
	return func(c *Client) {
		c.idempotency = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger crowdfund.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebug dumps request and response payloads.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// Client talks to the platform API on behalf of the current session.
type Client struct {
	baseURL     *url.URL
	tokens      TokenSource
	http        *http.Client
	limiter     *rate.Limiter
	logger      crowdfund.Logger
	idempotency bool
	debug       bool
}

// New returns a client rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("apiclient: base url %q must be absolute", baseURL)
	}

	if tokens == nil {
		tokens = TokenFunc(nil)
	}

	c := &Client{
		baseURL: u,
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  crowdfund.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// NewFromConfig builds a client from the shared configuration.
func NewFromConfig(cfg crowdfund.Config, tokens TokenSource, opts ...Option) (*Client, error) {
	base := []Option{
		WithTimeout(cfg.GetRequestTimeout()),
		WithRateLimit(cfg.GetRateLimit(), cfg.GetRateBurst()),
		WithDebug(cfg.GetDebug()),
	}
	return New(cfg.GetAPIBaseURL(), tokens, append(base, opts...)...)
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Token overrides the token source when set.
	Token string
	// Raw is sent as-is instead of Body when set, with ContentType.
	Raw         io.Reader
	ContentType string
}

// Do sends req and decodes a successful JSON response into out (when not nil).
// Failures are normalized into *goerrors.Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryRateLimit, "request throttled").
				WithCode(http.StatusTooManyRequests)
		}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to build request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("api request failed", "method", req.Method, "path", req.Path, "error", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "Network error, please try again").
			WithMetadata(map[string]any{"path": req.Path})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "unable to read response")
	}

	if c.debug {
		c.logger.Debug("api response",
			"method", req.Method,
			"path", req.Path,
			"status", resp.StatusCode,
			"body", print.MaybePrettyJSON(json.RawMessage(body)),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return normalize(parseAPIError(resp.StatusCode, body), req.Path)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected response from server").
			WithMetadata(map[string]any{"path": req.Path})
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := c.resolve(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var payload []byte
	var body io.Reader
	contentType := req.ContentType
	switch {
	case req.Raw != nil:
		body = req.Raw
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		payload = b
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	token := req.Token
	if token == "" {
		token = c.tokens.Token()
	}
	if token != "" {
		httpReq.Header.Set(HeaderAuthorization, "Bearer "+token)
	}

	if c.idempotency && req.Method != http.MethodGet && payload != nil {
		if key, err := idempotencyKey(req.Method, u.Path, token, payload); err == nil {
			httpReq.Header.Set(HeaderIdempotencyKey, key)
		}
	}

	return httpReq, nil
}

func (c *Client) resolve(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return &u
}

// idempotencyKey is stable for the same write by the same subject.
func idempotencyKey(method, path, token string, payload []byte) (string, error) {
	subject := crowdfund.SubjectOf(crowdfund.Decode(token))
	id, err := hashid.NewUUID(strings.Join([]string{method, path, subject, string(payload)}, "|"))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
