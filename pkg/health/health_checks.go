package health

import (
	"context"
	"runtime"
	"time"
)

// SimpleCheck creates a health check that always reports healthy
func SimpleCheck(name string) CheckFunc {
	return func(context.Context) Check {
		return Check{Name: name, Status: StatusHealthy}
	}
}

// GatewayCheck reports whether the compute slot is taken. A busy gateway is
// degraded, not unhealthy: queued requests will still be served.
func GatewayCheck(runner string, busy func() bool) CheckFunc {
	return func(context.Context) Check {
		check := Check{
			Name:    "gateway",
			Status:  StatusHealthy,
			Message: "Idle",
			Details: map[string]any{"runner": runner},
		}
		if busy() {
			check.Status = StatusDegraded
			check.Message = "Computation in progress"
		}
		check.Details["busy"] = check.Status == StatusDegraded
		return check
	}
}

// SnapshotCheck reports the age of the latest result. No result yet is
// healthy; a result older than maxAge (when positive) is degraded.
func SnapshotCheck(latest func() (seq uint64, at time.Time, ok bool), maxAge time.Duration) CheckFunc {
	return func(context.Context) Check {
		check := Check{
			Name:    "snapshot",
			Status:  StatusHealthy,
			Details: make(map[string]any),
		}

		seq, at, ok := latest()
		if !ok {
			check.Message = "No result computed yet"
			return check
		}

		age := time.Since(at)
		check.Details["seq"] = seq
		check.Details["age_seconds"] = age.Seconds()
		check.Message = "Result available"
		if maxAge > 0 && age > maxAge {
			check.Status = StatusDegraded
			check.Message = "Latest result is stale"
		}
		return check
	}
}

// WorkerCheck pings a remote worker within the check deadline
func WorkerCheck(transport string, ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "worker",
			Details: map[string]any{"transport": transport},
		}
		if err := ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}
		return check
	}
}

// CertificateCheck reports the remaining lifetime of the serving certificate.
// Within warnWithin of notAfter it is degraded; past it, unhealthy.
func CertificateCheck(notAfter time.Time, warnWithin time.Duration) CheckFunc {
	return func(context.Context) Check {
		left := time.Until(notAfter)
		check := Check{
			Name:    "certificate",
			Status:  StatusHealthy,
			Message: "Certificate valid",
			Details: map[string]any{
				"not_after":       notAfter.UTC().Format(time.RFC3339),
				"expires_in_days": int(left.Hours() / 24),
			},
		}
		switch {
		case left <= 0:
			check.Status = StatusUnhealthy
			check.Message = "Certificate expired"
		case left < warnWithin:
			check.Status = StatusDegraded
			check.Message = "Certificate expires soon"
		}
		return check
	}
}

// MemoryCheck creates a health check for heap usage against the memory
// obtained from the OS
func MemoryCheck() CheckFunc {
	return func(context.Context) Check {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return memoryCheck(m.HeapAlloc, m.Sys)
	}
}

func memoryCheck(alloc, sys uint64) Check {
	check := Check{
		Name: "memory",
		Details: map[string]any{
			"alloc_bytes": alloc,
			"sys_bytes":   sys,
		},
		Status:  StatusHealthy,
		Message: "Memory usage normal",
	}
	if sys > 0 && float64(alloc)/float64(sys) > 0.9 {
		check.Status = StatusDegraded
		check.Message = "High memory usage"
	}
	return check
}
