package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
)

// starRequest is a hub with three leaves, two of them linked so the power
// iteration converges
func starRequest() engine.Request {
	req := engine.NewRequest()
	req.Nodes = []engine.Node{{ID: "h"}, {ID: "l1"}, {ID: "l2"}, {ID: "l3"}}
	req.Links = []engine.Link{
		{Source: "h", Target: "l1"},
		{Source: "h", Target: "l2"},
		{Source: "h", Target: "l3"},
		{Source: "l1", Target: "l2"},
	}
	return req
}

func requireStarResult(t *testing.T, result *engine.Result) {
	t.Helper()

	require.NotNil(t, result)
	require.Len(t, result.NodeMetrics, 4)
	require.Equal(t, 3, result.NodeMetrics["h"].DegreeOut)
	require.InDelta(t, 1.0, result.NodeMetrics["h"].Eigenvector, 1e-9)
	require.InDelta(t, 0.0, result.NodeMetrics["l3"].Eigenvector, 1e-9)
	require.NotEmpty(t, result.TopEigenvector)
	require.Equal(t, "h", result.TopEigenvector[0].ID)
	require.Len(t, result.EdgeFlags, 4)
}

// blockingHandler waits for cancellation and reports it on canceled
func blockingHandler(canceled chan<- struct{}) Handler {
	return func(ctx context.Context, _ string, _ engine.Request, _ engine.ProgressFunc) (*engine.Result, error) {
		<-ctx.Done()
		select {
		case canceled <- struct{}{}:
		default:
		}
		return nil, ctx.Err()
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
