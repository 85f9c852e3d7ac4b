// Package wordstat is a client for the search-statistics API that reports
// related phrases and their popularity counts.
package wordstat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/runnerr0/wordharvest/internal/config"
)

const userInfoTimeout = 10 * time.Second

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// ErrLookupFailed is matched by every error Lookup returns.
var ErrLookupFailed = errors.New("lookup failed")

// LookupError describes a failed lookup: transport error, timeout or
// non-success status.
type LookupError struct {
	Phrase     string
	StatusCode int
	Body       string
	Err        error
}

func (e *LookupError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("lookup %q: status %d: %s", e.Phrase, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("lookup %q: %v", e.Phrase, e.Err)
	default:
		return fmt.Sprintf("lookup %q failed", e.Phrase)
	}
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is makes every LookupError match ErrLookupFailed.
func (e *LookupError) Is(target error) bool { return target == ErrLookupFailed }

// Phrase is a related phrase with its count.
type Phrase struct {
	Phrase string `json:"phrase"`
	Count  int64  `json:"count"`
}

type topRequestsBody struct {
	Phrase     string `json:"phrase"`
	NumPhrases int    `json:"numPhrases"`
	Regions    []int  `json:"regions,omitempty"`
}

type topRequestsResponse struct {
	TopRequests []Phrase `json:"topRequests"`
}

type userInfoResponse struct {
	UserInfo struct {
		DailyLimitRemaining int `json:"dailyLimitRemaining"`
	} `json:"userInfo"`
}

// Client issues lookups against the remote API. It holds no mutable state
// and is safe for concurrent use.
type Client struct {
	http        *http.Client
	url         string
	userInfoURL string
	token       string
	numPhrases  int
	language    string
	timeout     time.Duration
	logger      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Tests use it to talk to httptest servers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a client from the API configuration.
func NewClient(cfg config.APIConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("api url required")
	}
	if cfg.NumPhrases <= 0 {
		return nil, fmt.Errorf("num_phrases must be positive")
	}

	c := &Client{
		url:         cfg.URL,
		userInfoURL: cfg.UserInfoURL,
		token:       cfg.Token,
		numPhrases:  cfg.NumPhrases,
		language:    cfg.AcceptLanguage,
		timeout:     cfg.Timeout(),
		logger:      slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		hc, err := buildHTTPClient()
		if err != nil {
			return nil, err
		}
		c.http = hc
	}

	return c, nil
}

// buildHTTPClient creates a client whose transport negotiates HTTP/2 over TLS.
func buildHTTPClient() (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}
	return &http.Client{Transport: transport}, nil
}

// Lookup returns the phrases related to phrase. A nil region means the
// lookup is not scoped to a region. The result never exceeds the configured
// maximum. Every failure is a *LookupError.
func (c *Client) Lookup(ctx context.Context, phrase string, region *int) ([]Phrase, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, &LookupError{Err: errors.New("empty phrase")}
	}
	if region != nil && *region <= 0 {
		return nil, &LookupError{Phrase: phrase, Err: fmt.Errorf("invalid region %d", *region)}
	}

	body := topRequestsBody{Phrase: phrase, NumPhrases: c.numPhrases}
	if region != nil {
		body.Regions = []int{*region}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out topRequestsResponse
	if err := c.post(ctx, c.url, body, &out); err != nil {
		err.Phrase = phrase
		c.logger.Warn("lookup failed", "phrase", phrase, "status", err.StatusCode, "error", err.Err)
		return nil, err
	}

	phrases := out.TopRequests
	if len(phrases) > c.numPhrases {
		phrases = phrases[:c.numPhrases]
	}
	if phrases == nil {
		phrases = []Phrase{}
	}

	c.logger.Debug("lookup done", "phrase", phrase, "results", len(phrases))
	return phrases, nil
}

// UserInfo returns the number of lookups left in today's quota.
func (c *Client) UserInfo(ctx context.Context) (int, error) {
	if c.userInfoURL == "" {
		return 0, fmt.Errorf("user info url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, userInfoTimeout)
	defer cancel()

	var out userInfoResponse
	if err := c.post(ctx, c.userInfoURL, nil, &out); err != nil {
		return 0, fmt.Errorf("user info: %w", err)
	}
	return out.UserInfo.DailyLimitRemaining, nil
}

// post sends a JSON POST and decodes a 200 response into out.
func (c *Client) post(ctx context.Context, url string, in any, out any) *LookupError {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &LookupError{Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return &LookupError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &LookupError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &LookupError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &LookupError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
