package algorithms

import (
	"context"
	"errors"
	"math"
	"testing"
)

func buildAdjacency(t *testing.T, nodes []string, pairs [][2]string) *Adjacency {
	t.Helper()

	links := make([]Link, 0, len(pairs))
	for _, p := range pairs {
		links = append(links, Link{Source: p[0], Target: p[1]})
	}
	return BuildIndex(nodes, links, true).Adjacency
}

// TestEigenvector_EmptyGraph tests centrality with no nodes
func TestEigenvector_EmptyGraph(t *testing.T) {
	adj := buildAdjacency(t, nil, nil)

	result, err := EigenvectorCentrality(context.Background(), adj, DefaultEigenvectorOptions())
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}
	if len(result.Raw) != 0 || len(result.Normalized) != 0 {
		t.Errorf("Expected empty vectors, got %v / %v", result.Raw, result.Normalized)
	}
	if !result.Converged {
		t.Error("Expected convergence for empty graph")
	}
}

// TestEigenvector_NoEdges tests that isolated nodes score zero
func TestEigenvector_NoEdges(t *testing.T) {
	adj := buildAdjacency(t, []string{"x", "y"}, nil)

	result, err := EigenvectorCentrality(context.Background(), adj, DefaultEigenvectorOptions())
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}
	for i := range result.Raw {
		if result.Raw[i] != 0 || result.Normalized[i] != 0 {
			t.Errorf("Node %d: expected 0/0, got %f/%f", i, result.Raw[i], result.Normalized[i])
		}
	}
}

// TestEigenvector_Star tests a bipartite graph, where the plain iteration
// alternates between two vectors and stops at the iteration cap
func TestEigenvector_Star(t *testing.T) {
	adj := buildAdjacency(t,
		[]string{"c", "l1", "l2", "l3"},
		[][2]string{{"c", "l1"}, {"c", "l2"}, {"c", "l3"}})

	result, err := EigenvectorCentrality(context.Background(), adj, DefaultEigenvectorOptions())
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}
	if result.Converged {
		t.Error("Expected no convergence on a star")
	}
	if result.Iterations != DefaultEigenvectorOptions().MaxIterations {
		t.Errorf("Expected %d iterations, got %d", DefaultEigenvectorOptions().MaxIterations, result.Iterations)
	}

	// Odd steps give (3, 1, 1, 1)/sqrt12, even steps the uniform vector; the
	// cap is even so the uniform one is returned
	for i, v := range result.Raw {
		if math.Abs(v-0.5) > 1e-9 {
			t.Errorf("Node %d: expected raw score 0.5, got %f", i, v)
		}
	}
}

// TestEigenvector_OddCap tests the other half of the star's alternation
func TestEigenvector_OddCap(t *testing.T) {
	adj := buildAdjacency(t,
		[]string{"c", "l1", "l2", "l3"},
		[][2]string{{"c", "l1"}, {"c", "l2"}, {"c", "l3"}})

	result, err := EigenvectorCentrality(context.Background(), adj, EigenvectorOptions{MaxIterations: 199, Tolerance: 1e-6})
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}
	if want := 3 / math.Sqrt(12); math.Abs(result.Raw[0]-want) > 1e-9 {
		t.Errorf("Expected hub raw score %f, got %f", want, result.Raw[0])
	}
	if result.Normalized[0] != 1 || result.Normalized[1] != 0 {
		t.Errorf("Expected hub 1 and leaves 0, got %v", result.Normalized)
	}
}

// TestEigenvector_Kite tests convergence once the graph has an odd cycle
func TestEigenvector_Kite(t *testing.T) {
	adj := buildAdjacency(t,
		[]string{"c", "l1", "l2", "l3"},
		[][2]string{{"c", "l1"}, {"c", "l2"}, {"c", "l3"}, {"l1", "l2"}})

	result, err := EigenvectorCentrality(context.Background(), adj, DefaultEigenvectorOptions())
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}
	if !result.Converged {
		t.Fatalf("Expected convergence, stopped after %d iterations", result.Iterations)
	}

	want := []float64{0.611628, 0.522721, 0.522721, 0.281845}
	for i := range want {
		if math.Abs(result.Raw[i]-want[i]) > 1e-4 {
			t.Errorf("Node %d: expected raw score ~%f, got %f", i, want[i], result.Raw[i])
		}
	}
	if result.Normalized[0] != 1 || result.Normalized[3] != 0 {
		t.Errorf("Expected hub 1 and pendant leaf 0, got %v", result.Normalized)
	}
	if result.Raw[1] != result.Raw[2] {
		t.Errorf("Expected symmetric scores for l1 and l2, got %f and %f", result.Raw[1], result.Raw[2])
	}
}

// TestEigenvector_IsolatedNodeBesideEdge tests that an isolated node scores zero next to a connected pair
func TestEigenvector_IsolatedNodeBesideEdge(t *testing.T) {
	adj := buildAdjacency(t, []string{"a", "b", "z"}, [][2]string{{"a", "b"}})

	result, err := EigenvectorCentrality(context.Background(), adj, DefaultEigenvectorOptions())
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}
	if result.Raw[2] != 0 {
		t.Errorf("Expected isolated raw 0, got %f", result.Raw[2])
	}
	if result.Raw[0] != result.Raw[1] {
		t.Errorf("Expected symmetric pair scores, got %f and %f", result.Raw[0], result.Raw[1])
	}
	if result.Normalized[0] != 1 || result.Normalized[2] != 0 {
		t.Errorf("Expected normalized [1 1 0], got %v", result.Normalized)
	}
}

// TestEigenvector_Bounds tests normalization bounds and unit L2 norm on a path
func TestEigenvector_Bounds(t *testing.T) {
	adj := buildAdjacency(t,
		[]string{"a", "b", "c", "d", "e"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "e"}})

	result, err := EigenvectorCentrality(context.Background(), adj, DefaultEigenvectorOptions())
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}

	norm := 0.0
	for i, v := range result.Raw {
		if v < 0 {
			t.Errorf("Raw score %d negative: %f", i, v)
		}
		norm += v * v
		if n := result.Normalized[i]; n < 0 || n > 1 {
			t.Errorf("Normalized score %d out of range: %f", i, n)
		}
	}
	if math.Abs(norm-1) > 1e-9 {
		t.Errorf("Expected unit L2 norm, got %f", norm)
	}

	// Middle of the path is the most central
	if result.Normalized[2] != 1 {
		t.Errorf("Expected center normalized 1, got %f", result.Normalized[2])
	}
}

// TestEigenvector_MaxIterations tests that the iteration cap is honoured
func TestEigenvector_MaxIterations(t *testing.T) {
	adj := buildAdjacency(t,
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}})

	opts := EigenvectorOptions{MaxIterations: 1, Tolerance: 1e-12}
	result, err := EigenvectorCentrality(context.Background(), adj, opts)
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}
	if result.Iterations != 1 {
		t.Errorf("Expected 1 iteration, got %d", result.Iterations)
	}
	if result.Converged {
		t.Error("Expected no convergence after a single iteration")
	}
}

// TestEigenvector_Progress tests that progress is reported once per iteration
func TestEigenvector_Progress(t *testing.T) {
	adj := buildAdjacency(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	calls := 0
	opts := DefaultEigenvectorOptions()
	opts.Progress = func(iteration int) {
		calls++
		if iteration != calls {
			t.Errorf("Expected iteration %d, got %d", calls, iteration)
		}
	}

	result, err := EigenvectorCentrality(context.Background(), adj, opts)
	if err != nil {
		t.Fatalf("EigenvectorCentrality failed: %v", err)
	}
	if calls != result.Iterations {
		t.Errorf("Expected %d progress calls, got %d", result.Iterations, calls)
	}
}

// TestEigenvector_Cancelled tests that a cancelled context aborts the iteration
func TestEigenvector_Cancelled(t *testing.T) {
	adj := buildAdjacency(t, []string{"a", "b"}, [][2]string{{"a", "b"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EigenvectorCentrality(ctx, adj, DefaultEigenvectorOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestMinMaxNormalize tests scaling and the all-equal fallback
func TestMinMaxNormalize(t *testing.T) {
	got := MinMaxNormalize([]float64{2, 4, 3})
	want := []float64{0, 1, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Index %d: expected %f, got %f", i, want[i], got[i])
		}
	}

	for i, v := range MinMaxNormalize([]float64{0.3, 0.3, 0.3}) {
		if v != 0 {
			t.Errorf("Index %d: expected 0 for equal scores, got %f", i, v)
		}
	}
}
