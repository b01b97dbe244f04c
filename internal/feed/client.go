package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://haveibeenpwned.com/api/v3"
	DefaultUserAgent = "breachwatch"
	DefaultTimeout   = 10 * time.Second

	apiKeyHeader    = "hibp-api-key"
	maxErrorBodyLen = 512
)

// Record is one JSON object returned by the feed, with the feed's own
// CamelCase keys.
type Record = map[string]any

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	APIKey    string
	Timeout   time.Duration
	HTTP      *http.Client
	Logger    *slog.Logger
}

// Client is an HTTP client for the breach-intelligence feed.
type Client struct {
	baseURL   string
	userAgent string
	apiKey    string
	http      *http.Client
	logger    *slog.Logger
}

// NewClient creates a new feed client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "feed")
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		apiKey:    strings.TrimSpace(opts.APIKey),
		http:      httpClient,
		logger:    logger,
	}
}

// Breaches returns the full breach catalog.
func (c *Client) Breaches(ctx context.Context) ([]Record, error) {
	var resp []Record
	found, err := c.do(ctx, "/breaches", nil, &resp)
	if err == nil && !found {
		err = &APIError{Status: http.StatusNotFound, Endpoint: "/breaches", Message: "catalog not found"}
	}
	return resp, err
}

// DataClasses returns every data class name known to the feed.
func (c *Client) DataClasses(ctx context.Context) ([]string, error) {
	var resp []string
	found, err := c.do(ctx, "/dataclasses", nil, &resp)
	if err == nil && !found {
		err = &APIError{Status: http.StatusNotFound, Endpoint: "/dataclasses", Message: "taxonomy not found"}
	}
	return resp, err
}

// BreachedAccount returns the breaches affecting one account. An account the
// feed has never seen is reported as an empty list, not an error.
func (c *Client) BreachedAccount(ctx context.Context, account string) ([]Record, error) {
	query := url.Values{}
	query.Set("truncateResponse", "false")
	var resp []Record
	found, err := c.do(ctx, "/breachedaccount/"+url.PathEscape(account), query, &resp)
	if err != nil || !found {
		return nil, err
	}
	return resp, nil
}

// PasteAccount returns the pastes referencing one account. Not found is an
// empty list.
func (c *Client) PasteAccount(ctx context.Context, account string) ([]Record, error) {
	var resp []Record
	found, err := c.do(ctx, "/pasteaccount/"+url.PathEscape(account), nil, &resp)
	if err != nil || !found {
		return nil, err
	}
	return resp, nil
}

// do performs a GET and decodes the JSON body into out. It reports found=false
// for a 404 so account lookups can treat it as "no results".
func (c *Client) do(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("feed request", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, decodeError(path, resp)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", ErrUpstreamUnavailable, path, err)
	}
	return true, nil
}

func decodeError(path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	msg := strings.TrimSpace(string(body))

	var errResp struct {
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		msg = errResp.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Endpoint: path, Message: msg}
}
