// Package external provides the anti-corruption layer between Skyline domain
// logic and the third-party weather provider. All outbound HTTP calls are routed
// through the BaseClient, which applies consistent request decoration and maps
// transport failures onto the shared error taxonomy.
//
// Every call is a single attempt: there is no retry, no backoff and no circuit
// breaking. Callers that need resilience must add it themselves.
package external

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"skyline/internal/types"
)

// BaseClient wraps an *http.Client and enforces the request conventions shared
// by provider clients: request ID propagation, User-Agent injection and error
// mapping to types.AppError.
type BaseClient struct {
	client    *http.Client
	userAgent string
}

// NewBaseClient creates a BaseClient with the given http client and user agent.
// A nil httpClient is replaced with one bounded by timeout.
func NewBaseClient(httpClient *http.Client, timeout time.Duration, userAgent string) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &BaseClient{
		client:    httpClient,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request exactly once with:
//  1. Request ID propagation (X-Request-Id from context)
//  2. User-Agent header injection
//  3. Transport error mapping to types.AppError
//
// Any HTTP status is returned to the caller as-is; the caller owns status
// interpretation and must close the response body.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if requestID := types.GetRequestID(req.Context()); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	return resp, nil
}

// mapTransportError translates a failed round trip into Timeout,
// ConnectionFailure or, failing both, UnknownError.
func mapTransportError(err error) *types.AppError {
	if isTimeout(err) {
		return types.NewAppError(
			types.ErrCodeUpstreamTimeout,
			"request timed out",
			err,
		)
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return types.NewAppError(
			types.ErrCodeUpstreamConnectionFailure,
			"connection error; check network connectivity",
			err,
		)
	}

	if errors.Is(err, context.Canceled) {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"request cancelled",
			err,
		)
	}

	return types.NewAppError(
		types.ErrCodeInternalUnexpected,
		"unexpected error: "+unwrapURLError(err).Error(),
		err,
	)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// unwrapURLError strips the "Get <url>:" prefix that net/http adds, since the
// URL carries the API key in its query string.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
