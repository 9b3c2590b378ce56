// Package health aggregates component checks into liveness, readiness and
// overall health reports.
package health

import (
	"context"
	"maps"
	"time"
)

// NewHealthChecker returns a checker with no checks registered
func NewHealthChecker(opts ...Option) *HealthChecker {
	hc := &HealthChecker{
		checks:      make(map[string]CheckFunc),
		readyChecks: make(map[string]CheckFunc),
		liveChecks:  make(map[string]CheckFunc),
		started:     time.Now(),
		timeout:     DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

// RegisterCheck adds a check to the overall report
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// RegisterReadinessCheck adds a check to the readiness report
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.readyChecks[name] = check
}

// RegisterLivenessCheck adds a check to the liveness report
func (hc *HealthChecker) RegisterLivenessCheck(name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.liveChecks[name] = check
}

// Check runs the overall checks
func (hc *HealthChecker) Check(ctx context.Context) Response {
	return hc.run(ctx, hc.snapshot(hc.checks))
}

// CheckReadiness runs the readiness checks
func (hc *HealthChecker) CheckReadiness(ctx context.Context) Response {
	return hc.run(ctx, hc.snapshot(hc.readyChecks))
}

// CheckLiveness runs the liveness checks
func (hc *HealthChecker) CheckLiveness(ctx context.Context) Response {
	return hc.run(ctx, hc.snapshot(hc.liveChecks))
}

// snapshot copies a check set so checks run without holding the lock
func (hc *HealthChecker) snapshot(set map[string]CheckFunc) map[string]CheckFunc {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return maps.Clone(set)
}

type namedCheck struct {
	name  string
	check Check
}

// run executes every check concurrently and folds the results into one
// report
func (hc *HealthChecker) run(ctx context.Context, checks map[string]CheckFunc) Response {
	response := Response{
		Status:        StatusHealthy,
		Timestamp:     time.Now(),
		Checks:        make(map[string]Check, len(checks)),
		UptimeSeconds: time.Since(hc.started).Seconds(),
	}

	results := make(chan namedCheck, len(checks))
	for name, fn := range checks {
		go func() {
			results <- namedCheck{name: name, check: hc.runOne(ctx, name, fn)}
		}()
	}

	for range len(checks) {
		r := <-results
		response.Checks[r.name] = r.check
		if severity[r.check.Status] > severity[response.Status] {
			response.Status = r.check.Status
		}
	}
	return response
}

// runOne runs fn under the check timeout. A check that overruns is reported
// unhealthy; its goroutine finishes on its own.
func (hc *HealthChecker) runOne(ctx context.Context, name string, fn CheckFunc) Check {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Check, 1)
	go func() { done <- fn(ctx) }()

	var check Check
	select {
	case check = <-done:
	case <-ctx.Done():
		check = Check{Status: StatusUnhealthy, Message: "check timed out: " + ctx.Err().Error()}
	}
	if check.Name == "" {
		check.Name = name
	}
	if check.Status == "" {
		check.Status = StatusUnhealthy
	}
	check.LastChecked = start
	check.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	return check
}
