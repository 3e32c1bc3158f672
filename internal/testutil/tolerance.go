package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
)

// RequireNearlyEqual fails t if got and want differ by more than eps.
func RequireNearlyEqual(t testing.TB, got, want, eps float64) {
	t.Helper()
	if diff := math.Abs(got - want); diff > eps || math.IsNaN(diff) {
		t.Fatalf("got %v, want %v (diff %v > eps %v)", got, want, diff, eps)
	}
}

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t testing.TB, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(got[i] - want[i])
		if diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireBufferNearlyEqual fails t if the buffers differ in shape or any
// sample pair exceeds eps.
func RequireBufferNearlyEqual(t testing.TB, got, want *buffer.Buffer, eps float64) {
	t.Helper()
	if got.NumChannels() != want.NumChannels() || got.NumSamples() != want.NumSamples() {
		t.Fatalf("shape mismatch: got %dx%d, want %dx%d",
			got.NumChannels(), got.NumSamples(), want.NumChannels(), want.NumSamples())
	}
	for ch := range got.NumChannels() {
		d, _ := MaxAbsDiff(got.Channel(ch), want.Channel(ch))
		if d > eps {
			t.Fatalf("channel %d: max diff %v > eps %v", ch, d, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t testing.TB, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// MaxAbsDiff returns the maximum absolute difference between two slices.
// Returns an error if the slices differ in length.
func MaxAbsDiff(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	maxDiff := 0.0
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff, nil
}
