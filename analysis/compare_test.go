package analysis

import (
	"math"
	"testing"
)

func TestCompareIntervalsIdentical(t *testing.T) {
	ref := []Interval{{0, 0.4}, {0.5, 0.9}, {1.2, 1.5}}
	m := CompareIntervals(ref, ref, DefaultOnsetTolerance)
	if m.Matched != 3 || m.Score != 0 || m.Similarity != 1 {
		t.Fatalf("identical intervals: %+v", m)
	}
}

func TestCompareIntervalsOffsetError(t *testing.T) {
	ref := []Interval{{0, 0.4}, {0.5, 0.9}}
	est := []Interval{{0.51, 1.0}, {0.02, 0.5}}
	m := CompareIntervals(ref, est, DefaultOnsetTolerance)
	if m.Matched != 2 {
		t.Fatalf("matched = %d, want 2", m.Matched)
	}
	if math.Abs(m.OffsetRMSE-0.1) > 1e-9 || math.Abs(m.OffsetMAE-0.1) > 1e-9 {
		t.Fatalf("rmse %f mae %f, want 0.1", m.OffsetRMSE, m.OffsetMAE)
	}
	if math.Abs(m.Score-0.2) > 1e-9 {
		t.Fatalf("score = %f, want 0.2", m.Score)
	}
}

func TestCompareIntervalsUnmatched(t *testing.T) {
	ref := []Interval{{0, 0.4}, {1, 1.4}}
	est := []Interval{{0, 0.4}, {2, 2.3}}
	m := CompareIntervals(ref, est, DefaultOnsetTolerance)
	if m.Matched != 1 || m.Precision != 0.5 || m.Recall != 0.5 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if math.Abs(m.Score-0.25) > 1e-9 {
		t.Fatalf("score = %f, want 0.25", m.Score)
	}

	empty := CompareIntervals(nil, est, DefaultOnsetTolerance)
	if empty.Score != 1 || empty.Similarity != 0 {
		t.Fatalf("empty reference: %+v", empty)
	}
}
