package health

import (
	"context"
	"sync"
	"time"
)

// Status of one check or of a whole report
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity orders statuses; the report takes the worst
var severity = map[Status]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
}

// DefaultCheckTimeout bounds every check unless WithCheckTimeout says otherwise
const DefaultCheckTimeout = 5 * time.Second

// Check is the outcome of one check
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	DurationMs  float64        `json:"duration_ms"`
}

// CheckFunc runs one check. ctx carries the per-check deadline.
type CheckFunc func(ctx context.Context) Check

// HealthChecker holds the registered checks, split into overall, readiness
// and liveness sets
type HealthChecker struct {
	mu          sync.RWMutex
	checks      map[string]CheckFunc
	readyChecks map[string]CheckFunc
	liveChecks  map[string]CheckFunc
	started     time.Time
	timeout     time.Duration
}

// Option configures a HealthChecker
type Option func(*HealthChecker)

// WithCheckTimeout sets the deadline given to each check
func WithCheckTimeout(d time.Duration) Option {
	return func(hc *HealthChecker) {
		if d > 0 {
			hc.timeout = d
		}
	}
}

// Response is a full report
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}
