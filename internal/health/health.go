package health

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Source is a polled store whose freshness is reported
type Source interface {
	Name() string
	LastSuccess() time.Time
	ErrorMessage() string
}

// EndpointReporter reports the health of each upstream URL
type EndpointReporter interface {
	EndpointsHealth() map[string]bool
}

// Checker reports the freshness of every polled store
type Checker struct {
	sources   []Source
	endpoints EndpointReporter
	interval  time.Duration
	clock     clockwork.Clock
	started   time.Time
}

// NewChecker creates a health checker. A nil clock uses the real clock.
func NewChecker(interval time.Duration, clock clockwork.Clock, sources ...Source) *Checker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Checker{
		sources:  sources,
		interval: interval,
		clock:    clock,
		started:  clock.Now(),
	}
}

// WatchEndpoints adds an upstream endpoint check to the report
func (c *Checker) WatchEndpoints(r EndpointReporter) *Checker {
	c.endpoints = r
	return c
}

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// HealthResponse is the JSON response structure
type HealthResponse struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckDetail contains details about a specific health check
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// Check performs all health checks and returns the aggregated status.
// A store with no success after the startup grace period is an error; a
// stale or failing store degrades the overall status.
func (c *Checker) Check() HealthResponse {
	checks := make(map[string]CheckDetail, len(c.sources))
	overallStatus := StatusOK

	for _, src := range c.sources {
		detail := c.checkSource(src)
		checks[src.Name()] = detail

		switch {
		case detail.Status == StatusError:
			overallStatus = StatusError
		case detail.Status == StatusDegraded && overallStatus == StatusOK:
			overallStatus = StatusDegraded
		}
	}

	if c.endpoints != nil {
		detail := c.checkEndpoints()
		checks["indexer_endpoints"] = detail
		if detail.Status != StatusOK && overallStatus == StatusOK {
			overallStatus = StatusDegraded
		}
	}

	now := c.clock.Now()
	return HealthResponse{
		Status:    overallStatus,
		Timestamp: now,
		Checks:    checks,
		Uptime:    now.Sub(c.started).Round(time.Second).String(),
	}
}

// checkSource verifies the store refreshed within 2x its interval
func (c *Checker) checkSource(src Source) CheckDetail {
	now := c.clock.Now()
	graceThreshold := c.interval * 2
	last := src.LastSuccess()

	if last.IsZero() {
		if now.Sub(c.started) <= graceThreshold {
			return CheckDetail{
				Status:  StatusOK,
				Message: "not yet refreshed (startup)",
			}
		}
		msg := "no successful refresh since startup"
		if errMsg := src.ErrorMessage(); errMsg != "" {
			msg = errMsg
		}
		return CheckDetail{Status: StatusError, Message: msg}
	}

	if errMsg := src.ErrorMessage(); errMsg != "" {
		return CheckDetail{Status: StatusDegraded, Message: errMsg}
	}

	sinceLast := now.Sub(last)
	if sinceLast > graceThreshold {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("no refresh in %s (expected every %s)", sinceLast.Round(time.Second), c.interval),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: fmt.Sprintf("last refreshed %s ago", sinceLast.Round(time.Second)),
	}
}

// checkEndpoints reports how many indexer URLs are currently healthy. The
// stores carry the real failure, so this never escalates past degraded.
func (c *Checker) checkEndpoints() CheckDetail {
	status := c.endpoints.EndpointsHealth()
	healthyCount := 0
	totalCount := len(status)

	for _, healthy := range status {
		if healthy {
			healthyCount++
		}
	}

	if healthyCount == totalCount {
		return CheckDetail{
			Status:  StatusOK,
			Message: "all indexer endpoints healthy",
		}
	}

	return CheckDetail{
		Status:  StatusDegraded,
		Message: fmt.Sprintf("%d/%d indexer endpoints healthy", healthyCount, totalCount),
	}
}

// Handler returns an http.HandlerFunc for the health endpoint
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Check()

		statusCode := http.StatusOK
		if status.Status == StatusError {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	}
}
