package core

import (
	"context"
	"time"
)

// MetricsCollector records request-level metrics for the dashboard API.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	// endpoint is the matched route pattern, not the raw path, so that
	// location names never become metric dimensions.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// KeyValidator reports whether the configured provider API key is accepted.
// Satisfied by *external.WeatherClient.
type KeyValidator interface {
	ValidateKey(ctx context.Context) bool
}
