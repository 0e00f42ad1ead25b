// Package indexer talks to the read-only DAO indexer over HTTP.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrFetch marks transport failures and non-OK responses
	ErrFetch = errors.New("indexer request failed")
	// ErrParse marks bodies that are not valid JSON of the expected shape
	ErrParse = errors.New("indexer response malformed")
	// ErrNotArray is returned for well-formed proposal payloads that are not arrays
	ErrNotArray = errors.New("indexer response is not an array")
)

// StatusError is returned when the indexer answers with a non-OK status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrFetch
}

// IsStatusError reports whether err carries a non-OK HTTP status
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Config holds client configuration
type Config struct {
	BaseURL      string
	FallbackURLs []string // Tried in order when BaseURL is failing
	Timeout      time.Duration
	RateLimit    float64 // Requests per second, 0 disables limiting
	RateBurst    int
	Logger       *slog.Logger
}

// Client fetches raw indexer payloads
type Client struct {
	client    *fasthttp.Client
	endpoints *failover
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewClient creates an indexer client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	logger := cfg.Logger.With("component", "indexer")
	urls := make([]string, 0, 1+len(cfg.FallbackURLs))
	for _, u := range append([]string{cfg.BaseURL}, cfg.FallbackURLs...) {
		urls = append(urls, strings.TrimRight(u, "/"))
	}

	return &Client{
		client:    &fasthttp.Client{Name: "daodash"},
		endpoints: newFailover(urls, logger),
		timeout:   cfg.Timeout,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}
}

// AllProposals returns the raw daoCore/allProposals payload of a DAO
func (c *Client) AllProposals(ctx context.Context, chainID, daoAddress string) ([]byte, error) {
	return c.get(ctx, requestPath(chainID, "contract", daoAddress, "daoCore", "allProposals"))
}

// BankBalances returns the raw bank/balances payload of an account
func (c *Client) BankBalances(ctx context.Context, chainID, address string) ([]byte, error) {
	return c.get(ctx, requestPath(chainID, "account", address, "bank", "balances"))
}

// EndpointsHealth reports the health of each configured indexer URL
func (c *Client) EndpointsHealth() map[string]bool {
	return c.endpoints.health()
}

func requestPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}

// get tries each usable endpoint in turn. Transport failures and 5xx
// responses fail over to the next endpoint; any other answer is final.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrFetch, err)
	}

	var lastErr error
	for _, base := range c.endpoints.candidates() {
		body, err := c.do(ctx, base+path)
		if err == nil {
			c.endpoints.markHealthy(base)
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < fasthttp.StatusInternalServerError {
			return nil, err
		}
		c.endpoints.markUnhealthy(base, err)
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, requestURL string) ([]byte, error) {
	c.logger.Debug("Requesting indexer", "url", requestURL)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Debug("Indexer request failed", "url", requestURL, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, requestURL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Debug("Indexer returned non-OK status", "url", requestURL, "status", resp.StatusCode())
		return nil, &StatusError{URL: requestURL, StatusCode: resp.StatusCode()}
	}

	// resp is released on return
	return append([]byte(nil), resp.Body()...), nil
}
