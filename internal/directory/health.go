package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"memberdir/syncservice/internal/metrics"
)

const (
	backendFailureThreshold = 3
	backendBlockBase        = 30 * time.Second
	backendBlockMax         = 5 * time.Minute
)

type backendHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	lastOperation       string
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

// BackendDiagnostics is the externally visible health snapshot served by the
// diagnostics endpoint.
type BackendDiagnostics struct {
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastOperation       string     `json:"lastOperation,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

func (s *Service) backendBlocked(now time.Time) (bool, time.Time, string) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	if s.health.blockedUntil.IsZero() || now.After(s.health.blockedUntil) {
		return false, time.Time{}, ""
	}
	return true, s.health.blockedUntil, s.health.lastError
}

func (s *Service) recordBackendResult(operation string, err error, latency time.Duration, now time.Time) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := &s.health
	state.totalRequests++
	state.lastOperation = operation
	if latency > 0 {
		state.lastLatency = latency
		metrics.BackendRequestDuration.WithLabelValues(operation).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.BackendRequestsTotal.WithLabelValues(operation, "ok").Inc()
		metrics.BackendAvailable.Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.BackendRequestsTotal.WithLabelValues(operation, status).Inc()

	if state.consecutiveFailures >= backendFailureThreshold {
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures))
		metrics.BackendAvailable.Set(0)
	}
}

// exponentialBlockDuration grows the block window with each failure past the
// threshold: base × 2^(failures - threshold), capped.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - backendFailureThreshold
	if exponent < 0 {
		exponent = 0
	}
	d := backendBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > backendBlockMax {
			return backendBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

func (s *Service) BackendDiagnosticsSnapshot() BackendDiagnostics {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health
	item := BackendDiagnostics{
		ConsecutiveFailures: state.consecutiveFailures,
		LastError:           state.lastError,
		LastLatencyMS:       state.lastLatency.Milliseconds(),
		LastTimeout:         state.lastTimeout,
		LastOperation:       state.lastOperation,
		TotalRequests:       state.totalRequests,
		TotalFailures:       state.totalFailures,
		TimeoutCount:        state.timeoutCount,
	}
	if !state.blockedUntil.IsZero() {
		blockedUntil := state.blockedUntil
		item.BlockedUntil = &blockedUntil
	}
	if !state.lastSuccessAt.IsZero() {
		lastSuccessAt := state.lastSuccessAt
		item.LastSuccessAt = &lastSuccessAt
	}
	if !state.lastFailureAt.IsZero() {
		lastFailureAt := state.lastFailureAt
		item.LastFailureAt = &lastFailureAt
	}
	return item
}
