package shopify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the Admin API (20MB)
const maxResponseSize = 20 * 1024 * 1024

// maxErrorSnippet bounds how much of an error body ends up in an error message
const maxErrorSnippet = 256

const accessTokenHeader = "X-Shopify-Access-Token"

// Client talks to the Shopify Admin REST and GraphQL APIs. It implements
// migration.OrderSource, migration.ProductSource and migration.CouponSource.
//
// The client does not retry; it classifies failures into the migration
// sentinels and leaves retrying to the caller's retry policy.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Shopify client
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.DetailDelay > 0 {
		limit = rate.Every(config.DetailDelay)
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the validated configuration
func (c *Client) Config() *Config {
	return c.config
}

// ---------------------------------------------------------------------------
// REST
// ---------------------------------------------------------------------------

// pageURL returns the URL of the requested page. The first page carries the
// filters; later pages follow the next link, where Shopify only accepts limit.
func (c *Client) pageURL(resource string, filters url.Values, req migration.PageRequest) (string, error) {
	if req.Cursor == "" {
		params := url.Values{}
		for k, v := range filters {
			params[k] = v
		}
		if req.Limit > 0 {
			params.Set("limit", strconv.Itoa(req.Limit))
		}
		u := c.config.RESTURL(resource)
		if encoded := params.Encode(); encoded != "" {
			u += "?" + encoded
		}
		return u, nil
	}

	next, err := url.Parse(req.Cursor)
	if err != nil {
		return "", fmt.Errorf("%w: malformed page cursor: %v", migration.ErrRemoteRequestFailed, err)
	}
	if req.Limit > 0 {
		q := next.Query()
		q.Set("limit", strconv.Itoa(req.Limit))
		next.RawQuery = q.Encode()
	}
	return next.String(), nil
}

// doREST issues a GET and returns the body along with the next-page link
func (c *Client) doREST(ctx context.Context, rawURL string) ([]byte, string, error) {
	ctx, span := telemetry.StartSpan(ctx, "shopify.rest",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("http.url", redactURL(rawURL)),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, "", fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set(accessTokenHeader, c.config.AccessToken)
	req.Header.Set("Accept", "application/json")

	body, header, err := c.do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, "", err
	}
	telemetry.SetOK(span)
	return body, parseNextLink(header.Get("Link")), nil
}

// do sends the request and maps transport and HTTP failures to sentinels
func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", migration.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read response: %v", migration.ErrRemoteUnavailable, err)
	}

	if err := statusError(resp, body); err != nil {
		c.logger.Debug("shopify request failed",
			zap.String("method", req.Method),
			zap.String("url", redactURL(req.URL.String())),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return nil, nil, err
	}
	return body, resp.Header, nil
}

// statusError classifies an HTTP response status
func statusError(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	if code < 400 {
		return nil
	}
	detail := snippet(body)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d %s", migration.ErrRemoteAuthFailed, code, detail)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d %s", migration.ErrRemoteNotFound, code, detail)
	case code == http.StatusTooManyRequests:
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			return fmt.Errorf("%w: HTTP %d, retry after %ss", migration.ErrRemoteRateLimited, code, retryAfter)
		}
		return fmt.Errorf("%w: HTTP %d", migration.ErrRemoteRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d %s", migration.ErrRemoteUnavailable, code, detail)
	default:
		return fmt.Errorf("%w: HTTP %d %s", migration.ErrRemoteRequestFailed, code, detail)
	}
}

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="?next"?`)

// parseNextLink extracts the rel="next" URL from a Link header
func parseNextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		if m := nextLinkPattern.FindStringSubmatch(strings.TrimSpace(part)); m != nil {
			return m[1]
		}
	}
	return ""
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	return s
}

// redactURL drops the query string so page_info tokens stay out of spans and logs
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
