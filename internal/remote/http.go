// ABOUTME: HTTP implementation of the remote Client over a JSON books API
// ABOUTME: Wraps http.Client with auth header injection and request logging

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// HTTPClient implements Client against a JSON HTTP API:
//
//	POST   {base}/books          -> {"id": N}
//	PUT    {base}/books/{id}
//	GET    {base}/books?limit=N  -> [{...}, ...]
//	DELETE {base}/books/{id}
//
// The base endpoint and auth token are configuration; payload shape is a
// demo detail, not part of the sync core's contract.
type HTTPClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a client for the given base URL.
// authToken may be empty; timeout <= 0 falls back to 30s.
func NewHTTPClient(baseURL, authToken string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "remote"),
	}
}

// Create pushes a new record and returns the remote-assigned ID.
func (c *HTTPClient) Create(ctx context.Context, fields Fields) (int64, error) {
	body, err := c.do(ctx, http.MethodPost, "/books", fields)
	if err != nil {
		return 0, err
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decoding create response: %w", err)
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("create response missing id")
	}
	return resp.ID, nil
}

// Update overwrites the record with the given remote ID.
func (c *HTTPClient) Update(ctx context.Context, remoteID int64, fields Fields) error {
	_, err := c.do(ctx, http.MethodPut, "/books/"+strconv.FormatInt(remoteID, 10), fields)
	return err
}

// List fetches up to limit remote items.
func (c *HTTPClient) List(ctx context.Context, limit int) ([]Item, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.doQuery(ctx, http.MethodGet, "/books", query, nil)
	if err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding list response: %w", err)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Delete removes the record with the given remote ID.
func (c *HTTPClient) Delete(ctx context.Context, remoteID int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/books/"+strconv.FormatInt(remoteID, 10), nil)
	return err
}

// do executes one request with auth and correlation headers injected and
// returns the response body for 2xx statuses.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return c.doQuery(ctx, method, path, nil, payload)
}

func (c *HTTPClient) doQuery(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("building url: %w", err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	correlationID := uuid.New().String()
	req.Header.Set("X-Correlation-ID", correlationID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"correlation_id", correlationID,
			"error", err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"correlation_id", correlationID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	return data, nil
}
