// Package prismic is a read-only client for a Prismic-style headless CMS
// REST API (v2).
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrFetchFailed wraps every network, HTTP and decoding failure.
	ErrFetchFailed = errors.New("prismic: fetch failed")
	// ErrNotFound is returned when a lookup by uid matches no document.
	ErrNotFound = errors.New("prismic: document not found")
)

// Config holds client configuration.
type Config struct {
	Endpoint          string // API root, e.g. https://repo.cdn.prismic.io/api/v2
	AccessToken       string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables throttling
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RefTTL            time.Duration // how long the master ref is reused
	UserAgent         string
	HTTPClient        *http.Client
}

func (c *Config) setDefaults() {
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.RefTTL == 0 {
		c.RefTTL = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "spacetraveling/1.0"
	}
}

// Client talks to the CMS. It is safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	endpoint       string
	accessToken    string
	userAgent      string
	limiter        *rate.Limiter
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	refTTL         time.Duration
	logger         *slog.Logger

	mu         sync.Mutex
	ref        string
	refFetched time.Time
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.setDefaults()
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:     httpClient,
		endpoint:       cfg.Endpoint,
		accessToken:    cfg.AccessToken,
		userAgent:      cfg.UserAgent,
		limiter:        rate.NewLimiter(limit, 1),
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		refTTL:         cfg.RefTTL,
		logger:         logger.With("component", "prismic"),
	}
}

// Ref returns the current master ref, fetching the API root when the cached
// one is older than the configured TTL.
func (c *Client) Ref(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.ref != "" && time.Since(c.refFetched) < c.refTTL {
		ref := c.ref
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	var api API
	if err := c.get(ctx, c.withToken(c.endpoint), &api); err != nil {
		return "", err
	}
	ref := api.MasterRef()
	if ref == "" {
		return "", fmt.Errorf("%w: no master ref at %s", ErrFetchFailed, c.endpoint)
	}

	c.mu.Lock()
	c.ref = ref
	c.refFetched = time.Now()
	c.mu.Unlock()
	return ref, nil
}

// Query runs a documents search and returns its first page (or the page
// selected with the Page option).
func (c *Client) Query(ctx context.Context, preds []Predicate, opts ...QueryOption) (*SearchResponse, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("ref", ref)
	if len(preds) > 0 {
		v.Set("q", encodeQuery(preds))
	}
	for _, opt := range opts {
		opt(v)
	}
	if c.accessToken != "" {
		v.Set("access_token", c.accessToken)
	}

	var resp SearchResponse
	if err := c.get(ctx, c.endpoint+"/documents/search?"+v.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchPage requests the page behind cursor, a next_page value previously
// returned by the API. The cursor is requested as-is; the access token is
// appended only when configured and absent.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*SearchResponse, error) {
	if cursor == "" {
		return nil, fmt.Errorf("%w: empty cursor", ErrFetchFailed)
	}
	var resp SearchResponse
	if err := c.get(ctx, c.withToken(cursor), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetByUID returns the document of docType whose uid is uid.
func (c *Client) GetByUID(ctx context.Context, docType, uid string) (*Document, error) {
	resp, err := c.Query(ctx, []Predicate{At("my."+docType+".uid", uid)}, PageSize(1))
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, docType, uid)
	}
	return &resp.Results[0], nil
}

func (c *Client) withToken(raw string) string {
	if c.accessToken == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Query().Get("access_token") != "" {
		return raw
	}
	sep := "&"
	if u.RawQuery == "" {
		sep = "?"
		if strings.HasSuffix(raw, "?") {
			sep = ""
		}
	}
	return raw + sep + "access_token=" + url.QueryEscape(c.accessToken)
}

// statusError is a non-200 response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.code)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var pe *permanentError
	return !errors.As(err, &pe)
}

// permanentError is a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// get performs a GET with throttling and retries and decodes the JSON body
// into v. Failures are wrapped with ErrFetchFailed.
func (c *Client) get(ctx context.Context, rawURL string, v any) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		err = c.doRequest(ctx, rawURL, v)
		if err == nil {
			return nil
		}
		if attempt == c.maxAttempts || !retryable(err) || ctx.Err() != nil {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%w: %w", ErrFetchFailed, err)
}

func (c *Client) doRequest(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &permanentError{err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("cms request",
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"latency", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &permanentError{err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}
