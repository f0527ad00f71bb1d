// Package httpclient is the single outbound transport for backend
// calls. Every request is timeout-bounded and transport failures are
// classified into the timeout / connection taxonomy before they reach
// a service.
package httpclient

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"farmlink/internal/models"
)

// DefaultTimeout bounds a request when the caller does not configure
// one.
const DefaultTimeout = 60 * time.Second

// Client wraps resty with the default header set and error
// classification.
type Client struct {
	rest    *resty.Client
	timeout time.Duration
}

// New creates a Client for the given base URL (including the /api
// prefix).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{
		rest:    rest,
		timeout: timeout,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.rest.BaseURL
}

// Get issues a GET request and returns the raw body and status code.
// Request-level headers win over the client defaults on conflict.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) ([]byte, int, error) {
	log.Printf("GET %s%s (timeout %s)", c.rest.BaseURL, path, c.timeout)

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(path)
	if err != nil {
		return nil, 0, classify(err)
	}
	return resp.Body(), resp.StatusCode(), nil
}

// Post issues a POST request with a JSON body and returns the raw
// response body and status code.
func (c *Client) Post(ctx context.Context, path string, body interface{}, headers map[string]string) ([]byte, int, error) {
	log.Printf("POST %s%s (timeout %s)", c.rest.BaseURL, path, c.timeout)

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, 0, classify(err)
	}
	return resp.Body(), resp.StatusCode(), nil
}

// classify splits transport failures into timeouts and connection
// errors so callers can report an expired deadline distinctly.
func classify(err error) *models.APIError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewAPIError(models.ErrorCodeTimeout, "request timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.NewAPIError(models.ErrorCodeTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewAPIError(models.ErrorCodeNetwork, "request canceled", err)
	}
	return models.NewAPIError(models.ErrorCodeNetwork, "connection failed", err)
}
