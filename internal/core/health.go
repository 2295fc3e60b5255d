package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole probe run. Probes still running at the
// deadline are reported as timed out.
const healthCheckTimeout = 2 * time.Second

var errProbeTimeout = errors.New("health check timed out")

// HealthProbe is one dependency checked by GET /health.
type HealthProbe interface {
	// Name identifies the probe in the response, e.g. "weather_api_key".
	Name() string

	// Check reports an error when the dependency is unusable. It should
	// return promptly once ctx is done.
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every registered probe concurrently under a shared
// deadline. It answers 200 when all probes pass and 503 otherwise. With no
// probes registered the service is simply reported healthy.
//
// The route is mounted at GET /health and is exempt from rate limiting.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	type outcome struct {
		index int
		err   error
	}
	// Buffered so late probes never block after the handler has returned.
	outcomes := make(chan outcome, len(probes))
	for i, p := range probes {
		i, p := i, p
		go func() {
			outcomes <- outcome{index: i, err: runProbe(ctx, p)}
		}()
	}

	errs := make([]error, len(probes))
	for i := range errs {
		errs[i] = errProbeTimeout
	}
	for pending := len(probes); pending > 0; pending-- {
		select {
		case o := <-outcomes:
			errs[o.index] = o.err
		case <-ctx.Done():
			pending = 0
		}
	}

	resp := healthResponse{
		Status:     "healthy",
		Components: make(map[string]componentStatus, len(probes)),
	}
	status := http.StatusOK
	for i, p := range probes {
		if errs[i] != nil {
			resp.Components[p.Name()] = componentStatus{Status: "unhealthy", Message: errs[i].Error()}
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[p.Name()] = componentStatus{Status: "healthy"}
	}
	JSON(w, r, status, resp)
}

// runProbe converts a probe panic into an error.
func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return p.Check(ctx)
}

// errKeyRejected is reported when the provider refuses the configured key.
var errKeyRejected = errors.New("weather provider rejected the API key")

// KeyProbe checks that the weather provider accepts the configured API key.
// Each check spends one provider call.
type KeyProbe struct {
	Validator KeyValidator
}

// Name implements HealthProbe.
func (p KeyProbe) Name() string { return "weather_api_key" }

// Check implements HealthProbe.
func (p KeyProbe) Check(ctx context.Context) error {
	if !p.Validator.ValidateKey(ctx) {
		return errKeyRejected
	}
	return nil
}
