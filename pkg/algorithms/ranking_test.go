package algorithms

import "testing"

// TestTopRanked_TiesKeepInputOrder tests descending order with index tie-break
func TestTopRanked_TiesKeepInputOrder(t *testing.T) {
	scores := []float64{0.5, 1, 0.5, 0.2, 1, 0.5, 0.9}

	top := TopRanked(scores, 5)
	want := []int{1, 4, 6, 0, 2}
	if len(top) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(top))
	}
	for i, idx := range want {
		if top[i].Index != idx {
			t.Errorf("Position %d: expected index %d, got %d (score %f)", i, idx, top[i].Index, top[i].Score)
		}
	}
}

// TestTopRanked_FewerThanN tests that short inputs are returned whole
func TestTopRanked_FewerThanN(t *testing.T) {
	top := TopRanked([]float64{0.1, 0.3}, 5)
	if len(top) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(top))
	}
	if top[0].Index != 1 || top[1].Index != 0 {
		t.Errorf("Expected order [1 0], got [%d %d]", top[0].Index, top[1].Index)
	}
}

// TestTopRanked_ZeroN tests that a non-positive n yields an empty slice
func TestTopRanked_ZeroN(t *testing.T) {
	if top := TopRanked([]float64{1, 2}, 0); len(top) != 0 {
		t.Errorf("Expected no entries, got %d", len(top))
	}
}
