package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
)

// Outcome is how a computation ended
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// MarshalText renders the outcome by name
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name
func (o *Outcome) UnmarshalText(text []byte) error {
	for _, candidate := range []Outcome{OutcomePending, OutcomeSucceeded, OutcomeFailed, OutcomeCanceled} {
		if candidate.String() == string(text) {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Future is the handle for one submitted computation
type Future struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	result  *engine.Result
	err     error
	outcome Outcome
}

func newFuture(id string, cancel context.CancelFunc) *Future {
	return &Future{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the request id
func (f *Future) ID() string { return f.id }

// Done is closed when the computation has ended
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the computation ends and returns its result. Exactly one
// of the result and the error is non-nil.
func (f *Future) Wait() (*engine.Result, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

// Cancel asks the computation to stop at its next loop boundary. It does not
// wait; the future then completes with OutcomeCanceled unless the computation
// had already finished.
func (f *Future) Cancel() {
	f.cancel()
}

// Outcome reports how the computation ended, OutcomePending while it runs
func (f *Future) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

func (f *Future) complete(result *engine.Result, err error, outcome Outcome) {
	f.mu.Lock()
	f.result = result
	f.err = err
	f.outcome = outcome
	f.mu.Unlock()

	f.cancel()
	close(f.done)
}
