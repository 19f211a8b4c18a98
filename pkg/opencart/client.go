// Package opencart provides a client for the OpenCart REST API (ocrestapi)
// product endpoints.
package opencart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the OpenCart product operations used by the reconciliation
// pipeline.
type Client interface {
	// Ping verifies the store is reachable and the token is accepted.
	Ping(ctx context.Context) error
	// Search returns products matching a free-text term. An empty result is
	// not an error.
	Search(ctx context.Context, term string) ([]Product, error)
	// List pages through the full product listing.
	List(ctx context.Context, page, limit int) ([]Product, error)
	// Get fetches one product by id.
	Get(ctx context.Context, productID string) (*Product, error)
	// Create adds a product and returns its new id.
	Create(ctx context.Context, product NewProduct) (string, error)
	// Update edits an existing product.
	Update(ctx context.Context, productID string, product NewProduct) error
	// Delete removes a product.
	Delete(ctx context.Context, productID string) error
}

// Product is a catalog product as returned by the store.
type Product struct {
	ID       string `json:"product_id"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Price    Money  `json:"price"`
	Special  Money  `json:"special,omitempty"`
	Quantity Count  `json:"quantity,omitempty"`
}

// NewProduct is the payload for product creation and edits.
type NewProduct struct {
	Name           string `json:"product_name"`
	Model          string `json:"model"`
	Price          string `json:"price"`
	Quantity       int    `json:"quantity"`
	Status         int    `json:"product_status"`
	CategoryID     string `json:"product_category,omitempty"`
	ManufacturerID string `json:"manufacturer_id,omitempty"`
	Description    string `json:"product_description,omitempty"`
}

// Option configures the OpenCart client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. The store throttles
// aggressively, so callers should stay well under its ceiling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	baseURL    string
	basicToken string
	http       *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an OpenCart client. basicToken is the pre-encoded value
// for the Basic Authorization header.
func NewClient(baseURL, basicToken string, opts ...Option) Client {
	c := &httpClient{
		baseURL:    baseURL,
		basicToken: basicToken,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common ocrestapi response wrapper.
type envelope struct {
	Status int             `json:"status"`
	Error  APIError        `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type listingData struct {
	Products []Product `json:"products"`
	Total    Count     `json:"product_total"`
}

type productData struct {
	Product
}

type createData struct {
	ProductID Count `json:"product_id"`
}

func (c *httpClient) Ping(ctx context.Context) error {
	_, err := c.List(ctx, 1, 1)
	return err
}

func (c *httpClient) Search(ctx context.Context, term string) ([]Product, error) {
	params := url.Values{"search": {term}}
	data, err := c.call(ctx, http.MethodGet, "ocrestapi/product/listing", params, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "opencart: search %q", term)
	}

	var listing listingData
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, eris.Wrapf(err, "opencart: decode search %q listing", term)
	}
	return listing.Products, nil
}

func (c *httpClient) List(ctx context.Context, page, limit int) ([]Product, error) {
	params := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
	data, err := c.call(ctx, http.MethodGet, "ocrestapi/product/listing", params, nil)
	if err != nil {
		return nil, eris.Wrap(err, "opencart: list products")
	}

	var listing listingData
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, eris.Wrap(err, "opencart: decode product listing")
	}
	return listing.Products, nil
}

func (c *httpClient) Get(ctx context.Context, productID string) (*Product, error) {
	params := url.Values{"product_id": {productID}}
	data, err := c.call(ctx, http.MethodGet, "ocrestapi/product/product", params, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "opencart: get product %s", productID)
	}

	var pd productData
	if err := json.Unmarshal(data, &pd); err != nil {
		return nil, eris.Wrapf(err, "opencart: decode product %s", productID)
	}
	return &pd.Product, nil
}

func (c *httpClient) Create(ctx context.Context, product NewProduct) (string, error) {
	data, err := c.call(ctx, http.MethodPost, "ocrestapi/product/add", nil, product)
	if err != nil {
		return "", eris.Wrapf(err, "opencart: create product %q", product.Name)
	}

	var cd createData
	if err := json.Unmarshal(data, &cd); err != nil {
		return "", eris.Wrapf(err, "opencart: decode create response for %q", product.Name)
	}
	return cd.ProductID.String(), nil
}

func (c *httpClient) Update(ctx context.Context, productID string, product NewProduct) error {
	params := url.Values{"product_id": {productID}}
	if _, err := c.call(ctx, http.MethodPost, "ocrestapi/product/edit", params, product); err != nil {
		return eris.Wrapf(err, "opencart: update product %s", productID)
	}
	return nil
}

func (c *httpClient) Delete(ctx context.Context, productID string) error {
	params := url.Values{"product_id": {productID}}
	if _, err := c.call(ctx, http.MethodPost, "ocrestapi/product/delete", params, nil); err != nil {
		return eris.Wrapf(err, "opencart: delete product %s", productID)
	}
	return nil
}

// call issues one API request with rate limiting and retries, checks the
// envelope, and returns its data payload.
func (c *httpClient) call(ctx context.Context, method, route string, params url.Values, payload any) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrap(err, "marshal payload")
		}
	}

	reqURL := fmt.Sprintf("%s/index.php?route=%s", c.baseURL, route)
	if encoded := params.Encode(); encoded != "" {
		reqURL += "&" + encoded
	}

	build := func() (*http.Request, error) {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Basic "+c.basicToken)
		req.Header.Set("Accept", "application/json")
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	}

	respBody, statusCode, err := c.retryDo(ctx, build)
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("status %d: %s", statusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, eris.Wrap(err, "unmarshal envelope")
	}
	if env.Error.NotEmpty() {
		return nil, eris.Errorf("api error: %s", env.Error.String())
	}
	return env.Data, nil
}

// retryableStatusCode returns true if the HTTP status code should trigger a
// retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503). The request is rebuilt for each
// attempt so POST bodies can be replayed.
func (c *httpClient) retryDo(ctx context.Context, build func() (*http.Request, error)) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		req, err := build()
		if err != nil {
			return nil, 0, eris.Wrap(err, "create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}
