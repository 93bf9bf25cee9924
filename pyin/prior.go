package pyin

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	nThresholds = 100
	betaShape   = 18.0
)

var (
	betaMeans   = [...]float64{0.10, 0.15, 0.20, 0.30}
	singleValue = [...]float64{0.10, 0.15, 0.20}
)

// thresholds returns the candidate YIN thresholds 0.01..1.00.
func thresholds() []float64 {
	out := make([]float64, nThresholds)
	for i := range out {
		out[i] = float64(i+1) / nThresholds
	}
	return out
}

// thresholdPrior returns the normalised prior weight of each threshold for
// distribution id.
func thresholdPrior(id int) []float64 {
	ts := thresholds()
	w := make([]float64, len(ts))
	switch {
	case id == 0:
		for i := range w {
			w[i] = 1
		}
	case id >= 1 && id <= 4:
		mean := betaMeans[id-1]
		d := distuv.Beta{Alpha: mean * betaShape / (1 - mean), Beta: betaShape}
		for i, t := range ts {
			if t < 1 {
				w[i] = d.Prob(t)
			}
		}
	case id >= 5 && id <= 7:
		idx := int(singleValue[id-5]*nThresholds+0.5) - 1
		w[idx] = 1
	default:
		return w
	}
	if s := floats.Sum(w); s > 0 {
		floats.Scale(1/s, w)
	}
	return w
}
