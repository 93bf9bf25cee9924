package analysis

import "gonum.org/v1/gonum/floats"

// PeakPickConfig holds the window sizes and thresholds for PeakPick. Window
// bounds are in frames relative to the tested frame n.
type PeakPickConfig struct {
	PreMax  int     `json:"pre_max"`
	PostMax int     `json:"post_max"`
	PreAvg  int     `json:"pre_avg"`
	PostAvg int     `json:"post_avg"`
	Delta   float64 `json:"delta"`
	Wait    int     `json:"wait"`
}

func DefaultPeakPickConfig() PeakPickConfig {
	return PeakPickConfig{
		PreMax:  5,
		PostMax: 5,
		PreAvg:  5,
		PostAvg: 7,
		Delta:   0.5,
		Wait:    10,
	}
}

// PeakPick returns the indices n where x[n] is the maximum of
// x[n-PreMax:n+PostMax], at least Delta above the mean of
// x[n-PreAvg:n+PostAvg], strictly positive, and more than Wait frames after
// the previously accepted peak. Windows are clipped at the signal edges.
func PeakPick(x []float64, cfg PeakPickConfig) []int {
	var peaks []int
	last := -1 << 31
	for n, v := range x {
		if v <= 0 {
			continue
		}
		lo, hi := window(n, cfg.PreMax, cfg.PostMax, len(x))
		if v != floats.Max(x[lo:hi]) {
			continue
		}
		lo, hi = window(n, cfg.PreAvg, cfg.PostAvg, len(x))
		mean := floats.Sum(x[lo:hi]) / float64(hi-lo)
		if v < mean+cfg.Delta {
			continue
		}
		if n > last+cfg.Wait {
			peaks = append(peaks, n)
			last = n
		}
	}
	return peaks
}

func window(n, pre, post, length int) (int, int) {
	lo := n - pre
	if lo < 0 {
		lo = 0
	}
	hi := n + post
	if hi > length {
		hi = length
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}
