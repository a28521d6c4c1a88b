package segment_test

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/casevox/casevox/internal/segment"
)

// splitWords is a test helper shared across files in this package.
func splitWords(s string) []string {
	return strings.Fields(s)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSmooth_WindowOneIsIdentity(t *testing.T) {
	t.Parallel()

	series := []float64{0.9, 0.1, 0.8, 0.85}
	got := segment.Smooth(series, 1)
	if !reflect.DeepEqual(got, series) {
		t.Errorf("Smooth(window=1): got %v, want %v", got, series)
	}
	got = segment.Smooth(series, 0)
	if !reflect.DeepEqual(got, series) {
		t.Errorf("Smooth(window=0): got %v, want %v", got, series)
	}
}

func TestSmooth_PreservesLength(t *testing.T) {
	t.Parallel()

	for _, window := range []int{2, 3, 4, 5, 7} {
		series := []float64{0.9, 0.9, 0.1, 0.9, 0.9, 0.8, 0.7}
		if got := segment.Smooth(series, window); len(got) != len(series) {
			t.Errorf("Smooth(window=%d): len=%d, want %d", window, len(got), len(series))
		}
	}
}

func TestSmooth_AveragesSinglePointDip(t *testing.T) {
	t.Parallel()

	series := []float64{0.9, 0.0, 0.9}
	got := segment.Smooth(series, 3)

	// Edge replication pads to [0.9, 0.9, 0.0, 0.9, 0.9].
	want := []float64{0.6, 0.6, 0.6}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("Smooth[%d]: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestSmooth_ConstantSeriesUnchanged(t *testing.T) {
	t.Parallel()

	series := []float64{0.5, 0.5, 0.5, 0.5}
	got := segment.Smooth(series, 3)
	for i, v := range got {
		if !almostEqual(v, 0.5) {
			t.Errorf("Smooth[%d]: got %f, want 0.5", i, v)
		}
	}
}

func TestBoundaries_ThresholdSelection(t *testing.T) {
	t.Parallel()

	series := []float64{0.9, 0.1, 0.9, 0.2, 0.9}
	got := segment.Boundaries(series, 0.28)
	want := []int{1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Boundaries: got %v, want %v", got, want)
	}
}

func TestBoundaries_NoneBelowThreshold(t *testing.T) {
	t.Parallel()

	series := []float64{0.9, 0.8, 0.7}
	if got := segment.Boundaries(series, 0.28); len(got) != 0 {
		t.Errorf("Boundaries: got %v, want none", got)
	}
}

func TestBoundaries_EmptySeries(t *testing.T) {
	t.Parallel()

	if got := segment.Boundaries(nil, 0.28); len(got) != 0 {
		t.Errorf("Boundaries(nil): got %v, want none", got)
	}
}

func TestBoundaries_ThresholdMonotonicity(t *testing.T) {
	t.Parallel()

	series := []float64{0.9, 0.1, 0.5, 0.3, 0.05, 0.7}
	thresholds := []float64{0.0, 0.1, 0.28, 0.5, 0.9, 1.0}

	prev := -1
	for _, th := range thresholds {
		n := len(segment.Boundaries(series, th))
		if n < prev {
			t.Errorf("Boundaries(threshold=%f): count %d decreased below %d", th, n, prev)
		}
		prev = n
	}
}
