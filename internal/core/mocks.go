package core

import (
	"context"
	"sync"
	"time"
)

// --- MockMetricsCollector ---

// RecordedRequest is one call captured by MockMetricsCollector.
type RecordedRequest struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

// MockMetricsCollector implements MetricsCollector for testing. It records
// every call for later assertion.
type MockMetricsCollector struct {
	mu    sync.Mutex
	Calls []RecordedRequest
}

// RecordRequest implements MetricsCollector.
func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, RecordedRequest{
		Method:   method,
		Endpoint: endpoint,
		Status:   status,
		Duration: duration,
	})
}

// Recorded returns a copy of the captured calls.
func (m *MockMetricsCollector) Recorded() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.Calls))
	copy(out, m.Calls)
	return out
}

// --- MockKeyValidator ---

// MockKeyValidator implements KeyValidator for testing.
//
// Usage:
//
//	probe := KeyProbe{Validator: &MockKeyValidator{Valid: true}}
type MockKeyValidator struct {
	// Valid is returned by ValidateKey unless ValidateFunc is set.
	Valid bool

	// ValidateFunc optionally overrides Valid, e.g. to block until the
	// context is done.
	ValidateFunc func(ctx context.Context) bool

	mu    sync.Mutex
	calls int
}

// ValidateKey implements KeyValidator.
func (m *MockKeyValidator) ValidateKey(ctx context.Context) bool {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx)
	}
	return m.Valid
}

// CallCount returns how many times ValidateKey was invoked.
func (m *MockKeyValidator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
