package stores

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

	"github.com/PuerkitoBio/goquery"
	"github.com/pricewatch/crawler/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps storefront responses; product pages are a few hundred KB
const maxBodyBytes = 5 << 20

// FetcherConfig configures the HTTP plumbing shared by one adapter
type FetcherConfig struct {
	Timeout       time.Duration
	UserAgent     string
	RatePerSecond float64
	Burst         int
	// CORSProxy is prepended to the query-escaped target URL when an adapter
	// asks for a proxied fetch, e.g. "https://corsproxy.io/?". Empty means direct.
	CORSProxy string
}

// Fetcher issues rate-limited requests to a single storefront
type Fetcher struct {
	httpClient  *http.Client
	userAgent   string
	rateLimiter *rate.Limiter
	corsProxy   string
	logger      *zap.Logger
}

// NewFetcher creates a fetcher with its own client and token bucket
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "PriceWatch/1.0"
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent:   cfg.UserAgent,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		corsProxy:   cfg.CORSProxy,
		logger:      logger,
	}
}

// Proxied rewrites rawURL to go through the configured CORS proxy, if any
func (f *Fetcher) Proxied(rawURL string) string {
	if f.corsProxy == "" {
		return rawURL
	}
	return f.corsProxy + url.QueryEscape(rawURL)
}

// do waits for the limiter, executes the request and returns the body of a 2xx response
func (f *Fetcher) do(req *http.Request) ([]byte, error) {
	if err := f.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrTransport, err)
	}

	f.logger.Debug("storefront request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: status %d", domain.ErrTransport, req.Method, req.URL.Path, resp.StatusCode)
	}

	return body, nil
}

// GetJSON fetches reqURL and decodes the JSON body into out
func (f *Fetcher) GetJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := f.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetDocument fetches reqURL and parses it as HTML
func (f *Fetcher) GetDocument(ctx context.Context, reqURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := f.do(req)
	if err != nil {
		return nil, err
	}

	return parseDocument(body)
}

// PostFormJSON posts an urlencoded form and decodes the JSON reply into out
func (f *Fetcher) PostFormJSON(ctx context.Context, reqURL string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := f.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// PostJSONDocument posts a JSON payload and parses the HTML reply
func (f *Fetcher) PostJSONDocument(ctx context.Context, reqURL string, payload interface{}) (*goquery.Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := f.do(req)
	if err != nil {
		return nil, err
	}

	return parseDocument(body)
}

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}
