package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"stocksync/internal/config"
)

var (
	// ErrCatalogUnavailable means the catalog could not be listed at all.
	// Fatal for a run: without a trustworthy index every catalog SKU would
	// look absent from the feed and be mass-reset.
	ErrCatalogUnavailable = errors.New("catalog service unavailable")
)

// Client talks to the catalog service's REST API. One instance per run;
// not safe for concurrent use (the run is single-threaded by design).
type Client struct {
	baseURL     string
	apiKey      string
	warehouseID string
	pageSize    int
	httpc       *http.Client
	limiter     <-chan time.Time
	logger      *zap.Logger
}

// NewClient creates a catalog client from configuration.
func NewClient(cfg config.CatalogConfig, logger *zap.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var limiter <-chan time.Time
	if cfg.RateLimitPerMin > 0 {
		limiter = time.Tick(time.Minute / time.Duration(cfg.RateLimitPerMin))
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		warehouseID: cfg.WarehouseID,
		pageSize:    pageSize,
		httpc:       &http.Client{Timeout: 30 * time.Second},
		limiter:     limiter,
		logger:      logger,
	}
}

// PageSize is the fixed listing page size; a page shorter than this is the
// last one.
func (c *Client) PageSize() int {
	return c.pageSize
}

// ListProducts fetches one page of the category-filtered product listing.
// Transient failures (network, 5xx) are retried with backoff before the
// page is reported as failed.
func (c *Client) ListProducts(ctx context.Context, categoryID string, page int) ([]Product, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.pageSize))
	if categoryID != "" {
		params.Set("categoryId", categoryID)
	}

	var products []Product
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, err := c.do(ctx, http.MethodGet, "/products?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		var parsed listResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to decode product listing: %w", err)
		}
		products = parsed.Products
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return products, nil
}

// UpdateStock submits a delta stock mutation for one variant. The catalog
// service keeps the absolute counter; the caller is responsible for
// computing the delta against the index snapshot the decision came from.
func (c *Client) UpdateStock(ctx context.Context, parentID, variantID string, delta int) error {
	payload := map[string]any{
		"stock": map[string]map[string]int{
			c.warehouseID: {variantID: delta},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode stock mutation: %w", err)
	}

	c.logger.Info("Submitting stock mutation",
		zap.String("product_id", parentID),
		zap.String("variant_id", variantID),
		zap.Int("delta", delta),
	)

	if _, err := c.do(ctx, http.MethodPut, "/products/"+parentID+"/stock", body); err != nil {
		return fmt.Errorf("stock mutation failed for variant %s: %w", variantID, err)
	}
	return nil
}

// DeleteProduct deletes a main product and all its variants. Deleting a
// product that is already gone counts as success; only transport or auth
// failures are errors.
func (c *Client) DeleteProduct(ctx context.Context, parentID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/products/"+parentID, nil)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			c.logger.Info("Product already absent, treating delete as success",
				zap.String("product_id", parentID))
			return nil
		}
		return fmt.Errorf("failed to delete product %s: %w", parentID, err)
	}
	return nil
}

// TestConnection probes the API with a minimal listing request.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, "/products?page=1&per_page=1", nil); err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return nil
}

// apiError carries the HTTP status so callers can distinguish absence from
// hard failure. 4xx (except 429) is permanent; everything else is
// retryable.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("catalog api error %d: %s", e.status, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		select {
		case <-c.limiter:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, retry.RetryableError(apiErr)
		}
		return nil, apiErr
	}
	return respBody, nil
}
