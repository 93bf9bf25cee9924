package analysis

import (
	"math"
	"sort"
)

// DefaultOnsetTolerance is the onset window used to match intervals.
const DefaultOnsetTolerance = 0.05

// IntervalMetrics compares estimated note intervals against a reference.
type IntervalMetrics struct {
	ReferenceCount int     `json:"reference_count"`
	EstimateCount  int     `json:"estimate_count"`
	Matched        int     `json:"matched"`
	OnsetTolerance float64 `json:"onset_tolerance"`

	OffsetRMSE float64 `json:"offset_rmse"`
	OffsetMAE  float64 `json:"offset_mae"`
	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// CompareIntervals pairs each reference interval with the closest unmatched
// estimate whose onset lies within tolerance, then scores offset error and
// match coverage. Score is in [0,1], lower is better.
func CompareIntervals(reference, estimate []Interval, tolerance float64) IntervalMetrics {
	m := IntervalMetrics{
		ReferenceCount: len(reference),
		EstimateCount:  len(estimate),
		OnsetTolerance: tolerance,
	}
	if len(reference) == 0 || len(estimate) == 0 {
		m.Score = 1.0
		m.Similarity = 0.0
		return m
	}

	ref := sortedByOnset(reference)
	est := sortedByOnset(estimate)
	used := make([]bool, len(est))
	var refOff, estOff []float64
	for _, r := range ref {
		best := -1
		bestDist := math.Inf(1)
		lo := sort.Search(len(est), func(i int) bool { return est[i].Onset >= r.Onset-tolerance })
		for j := lo; j < len(est) && est[j].Onset <= r.Onset+tolerance; j++ {
			if used[j] {
				continue
			}
			if d := math.Abs(est[j].Onset - r.Onset); d < bestDist {
				best, bestDist = j, d
			}
		}
		if best < 0 {
			continue
		}
		used[best] = true
		refOff = append(refOff, r.Offset)
		estOff = append(estOff, est[best].Offset)
	}

	m.Matched = len(refOff)
	m.Precision = float64(m.Matched) / float64(len(est))
	m.Recall = float64(m.Matched) / float64(len(ref))

	offNorm := 1.0
	if m.Matched > 0 {
		m.OffsetRMSE = rmse(refOff, estOff)
		m.OffsetMAE = meanAbsDiff(refOff, estOff)
		offNorm = clamp01(m.OffsetRMSE / 0.25)
	}

	m.Score = clamp01(0.5*offNorm + 0.25*(1-m.Recall) + 0.25*(1-m.Precision))
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m
}

func sortedByOnset(in []Interval) []Interval {
	out := append([]Interval(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Onset < out[j].Onset })
	return out
}

func rmse(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func meanAbsDiff(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(n)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
