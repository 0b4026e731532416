// Package backend talks to the PriceWatch backend: the check stream that
// announces stores and backend-resolved results, and the single-link
// check-price endpoint used by overrides.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pricewatch/crawler/internal/domain"
	"go.uber.org/zap"
)

// Client handles communication with the PriceWatch backend API
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	logger       *zap.Logger
}

// NewClient creates a backend client. baseURL is the API root, e.g.
// "http://127.0.0.1:8000/". timeout bounds plain requests only; streams stay
// open until the context is cancelled or the server hangs up.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		baseURL:      baseURL,
		logger:       logger.Named("backend"),
	}
}

// OpenCheckStream opens stream/check/ for productName
func (c *Client) OpenCheckStream(ctx context.Context, productName string) (domain.EventStream, error) {
	params := url.Values{}
	params.Set("product_name", productName)
	reqURL := fmt.Sprintf("%sstream/check/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStreamFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrStreamFailure, readBackendError(resp))
	}

	c.logger.Info("check stream opened", zap.String("product", productName))
	return newEventStream(resp.Body, c.logger), nil
}

// CheckPrice asks the backend to price one store link. It posts the same
// multipart form the dashboard sends (fields "store" and "url").
func (c *Client) CheckPrice(ctx context.Context, storeName, productURL string) ([]domain.PriceOffer, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("store", storeName); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	if err := form.WriteField("url", productURL); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"api/storelinks/check-price/", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		backendErr := readBackendError(resp)
		c.logger.Warn("check-price rejected",
			zap.String("store", storeName),
			zap.Int("status", backendErr.Status),
			zap.String("detail", backendErr.Detail))
		return nil, backendErr
	}

	var offers []domain.PriceOffer
	if err := json.NewDecoder(resp.Body).Decode(&offers); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(offers) == 0 {
		return nil, nil
	}
	return offers, nil
}

// readBackendError extracts {"detail": "..."} from an error response when present
func readBackendError(resp *http.Response) *domain.BackendError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(body, &payload)

	return &domain.BackendError{Status: resp.StatusCode, Detail: payload.Detail}
}
