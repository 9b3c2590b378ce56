package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRegisterCheck(t *testing.T) {
	hc := NewHealthChecker()

	called := false
	hc.RegisterCheck("test", func(context.Context) Check {
		called = true
		return Check{Status: StatusHealthy}
	})

	resp := hc.Check(context.Background())
	if !called {
		t.Error("registered check was not called")
	}
	check, exists := resp.Checks["test"]
	if !exists {
		t.Fatal("check result not in response")
	}
	if check.Name != "test" {
		t.Errorf("expected name to default to registration name, got %q", check.Name)
	}
}

func TestChecksAreSeparated(t *testing.T) {
	hc := NewHealthChecker()

	var ready, live int
	hc.RegisterReadinessCheck("ready", func(context.Context) Check { ready++; return Check{Status: StatusHealthy} })
	hc.RegisterLivenessCheck("live", func(context.Context) Check { live++; return Check{Status: StatusHealthy} })

	ctx := context.Background()
	hc.Check(ctx)
	if ready != 0 || live != 0 {
		t.Errorf("Check() ran readiness/liveness checks: ready=%d live=%d", ready, live)
	}
	hc.CheckReadiness(ctx)
	hc.CheckLiveness(ctx)
	if ready != 1 || live != 1 {
		t.Errorf("expected one call each, got ready=%d live=%d", ready, live)
	}
}

func TestWorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy beats degraded", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, s := range tt.statuses {
				status := s
				hc.RegisterCheck(string(rune('a'+i)), func(context.Context) Check { return Check{Status: status} })
			}
			if got := hc.Check(context.Background()).Status; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestHandlers_StatusCodes(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("gateway", func(context.Context) Check { return Check{Status: StatusDegraded} })
	hc.RegisterReadinessCheck("gateway", func(context.Context) Check { return Check{Status: StatusDegraded} })
	hc.RegisterLivenessCheck("process", SimpleCheck("process"))

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{"health degraded is ok", hc.HTTPHandler(), http.StatusOK},
		{"readiness degraded is unavailable", hc.ReadinessHandler(), http.StatusServiceUnavailable},
		{"liveness healthy", hc.LivenessHandler(), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
		})
	}
}

// TestCheckTimeout tests that a check ignoring its deadline is reported
// unhealthy once the deadline passes
func TestCheckTimeout(t *testing.T) {
	hc := NewHealthChecker(WithCheckTimeout(20 * time.Millisecond))

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	hc.RegisterCheck("stuck", func(context.Context) Check {
		<-release
		return Check{Status: StatusHealthy}
	})
	hc.RegisterCheck("quick", SimpleCheck("quick"))

	start := time.Now()
	resp := hc.Check(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Check() took %v, expected it to stop at the check timeout", elapsed)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", resp.Status)
	}
	if got := resp.Checks["stuck"]; got.Status != StatusUnhealthy || got.Name != "stuck" {
		t.Errorf("stuck check: got %+v", got)
	}
	if got := resp.Checks["quick"]; got.Status != StatusHealthy {
		t.Errorf("quick check: got %+v", got)
	}
}

func TestCheck_MissingStatusIsUnhealthy(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterCheck("blank", func(context.Context) Check { return Check{} })
	if got := hc.Check(context.Background()).Status; got != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", got)
	}
}

func TestGatewayCheck(t *testing.T) {
	busy := false
	check := GatewayCheck("inprocess", func() bool { return busy })
	ctx := context.Background()

	if got := check(ctx); got.Status != StatusHealthy || got.Details["runner"] != "inprocess" {
		t.Errorf("idle gateway: got %+v", got)
	}
	busy = true
	if got := check(ctx); got.Status != StatusDegraded || got.Details["busy"] != true {
		t.Errorf("busy gateway: got %+v", got)
	}
}

func TestSnapshotCheck(t *testing.T) {
	t.Run("no result", func(t *testing.T) {
		check := SnapshotCheck(func() (uint64, time.Time, bool) { return 0, time.Time{}, false }, time.Minute)
		if got := check(context.Background()); got.Status != StatusHealthy {
			t.Errorf("expected healthy, got %s", got.Status)
		}
	})

	t.Run("fresh", func(t *testing.T) {
		check := SnapshotCheck(func() (uint64, time.Time, bool) { return 3, time.Now(), true }, time.Minute)
		got := check(context.Background())
		if got.Status != StatusHealthy || got.Details["seq"] != uint64(3) {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("stale", func(t *testing.T) {
		check := SnapshotCheck(func() (uint64, time.Time, bool) { return 1, time.Now().Add(-time.Hour), true }, time.Minute)
		if got := check(context.Background()); got.Status != StatusDegraded {
			t.Errorf("expected degraded, got %s", got.Status)
		}
	})

	t.Run("no max age", func(t *testing.T) {
		check := SnapshotCheck(func() (uint64, time.Time, bool) { return 1, time.Now().Add(-time.Hour), true }, 0)
		if got := check(context.Background()); got.Status != StatusHealthy {
			t.Errorf("expected healthy, got %s", got.Status)
		}
	})
}

func TestWorkerCheck(t *testing.T) {
	hc := NewHealthChecker(WithCheckTimeout(time.Second))
	hc.RegisterReadinessCheck("worker", WorkerCheck("nats", func(ctx context.Context) error {
		if _, has := ctx.Deadline(); !has {
			return errors.New("ping context has no deadline")
		}
		return nil
	}))
	if got := hc.CheckReadiness(context.Background()).Checks["worker"]; got.Status != StatusHealthy {
		t.Errorf("expected healthy, got %+v", got)
	}

	down := WorkerCheck("nats", func(context.Context) error { return errors.New("no responders") })
	got := down(context.Background())
	if got.Status != StatusUnhealthy || got.Message != "no responders" {
		t.Errorf("expected unhealthy with message, got %+v", got)
	}
}

func TestMemoryCheck(t *testing.T) {
	if got := memoryCheck(10, 100); got.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", got.Status)
	}
	if got := memoryCheck(95, 100); got.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", got.Status)
	}
	if got := memoryCheck(1, 0); got.Status != StatusHealthy {
		t.Errorf("zero sys should not divide, got %s", got.Status)
	}
	if got := MemoryCheck()(context.Background()); got.Name != "memory" {
		t.Errorf("expected memory check name, got %q", got.Name)
	}
}

func TestCertificateCheck(t *testing.T) {
	tests := []struct {
		name     string
		notAfter time.Time
		want     Status
	}{
		{"valid", time.Now().Add(90 * 24 * time.Hour), StatusHealthy},
		{"expiring", time.Now().Add(24 * time.Hour), StatusDegraded},
		{"expired", time.Now().Add(-time.Minute), StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CertificateCheck(tt.notAfter, 30*24*time.Hour)(context.Background())
			if got.Status != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, got.Status, got.Message)
			}
			if got.Name != "certificate" {
				t.Errorf("expected certificate check name, got %q", got.Name)
			}
		})
	}
}
