package pyin

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const globalMinWeight = 0.01

type candidate struct {
	freq float64
	prob float64
}

// difference computes the YIN squared-difference function of block for lags
// 0..len(block)/2-1 using an FFT cross-correlation.
func difference(block []float64) []float64 {
	w := len(block)
	half := w / 2
	n := 1
	for n < 2*w {
		n <<= 1
	}
	a := make([]float64, n)
	b := make([]float64, n)
	copy(a, block[:half])
	copy(b, block)
	fa := fft.FFTReal(a)
	fb := fft.FFTReal(b)
	for i := range fa {
		fa[i] = cmplx.Conj(fa[i]) * fb[i]
	}
	r := fft.IFFT(fa)

	// prefix energies
	cum := make([]float64, w+1)
	for i, v := range block {
		cum[i+1] = cum[i] + v*v
	}
	e0 := cum[half]
	d := make([]float64, half)
	for tau := 0; tau < half; tau++ {
		et := cum[tau+half] - cum[tau]
		v := e0 + et - 2*real(r[tau])
		if v < 0 {
			v = 0
		}
		d[tau] = v
	}
	return d
}

// cmnd turns a difference function into the cumulative mean normalised
// difference in place. d[0] becomes 1.
func cmnd(d []float64) {
	if len(d) == 0 {
		return
	}
	d[0] = 1
	var running float64
	for tau := 1; tau < len(d); tau++ {
		running += d[tau]
		if running == 0 {
			d[tau] = 1
			continue
		}
		d[tau] *= float64(tau) / running
	}
}

// parabolicTau refines a lag estimate with the neighbouring values.
func parabolicTau(d []float64, tau int) float64 {
	if tau < 1 || tau+1 >= len(d) {
		return float64(tau)
	}
	s0, s1, s2 := d[tau-1], d[tau], d[tau+1]
	den := 2 * (2*s1 - s2 - s0)
	if den == 0 {
		return float64(tau)
	}
	shift := (s2 - s0) / den
	if math.Abs(shift) > 1 {
		return float64(tau)
	}
	return float64(tau) + shift
}

// yinCandidates distributes the threshold prior over the lags chosen by each
// threshold and returns the resulting pitch candidates.
func yinCandidates(d []float64, prior []float64, ts []float64, sampleRate int) []candidate {
	const minTau = 2
	if len(d) <= minTau+1 {
		return nil
	}

	// local minima of the cmnd below 1, in lag order
	var minima []int
	globalMin := -1
	for tau := minTau; tau < len(d)-1; tau++ {
		if d[tau] < d[tau-1] && d[tau] <= d[tau+1] {
			minima = append(minima, tau)
			if globalMin < 0 || d[tau] < d[globalMin] {
				globalMin = tau
			}
		}
	}
	if globalMin < 0 {
		return nil
	}

	probs := make(map[int]float64)
	for i, th := range ts {
		if prior[i] == 0 {
			continue
		}
		found := -1
		for _, tau := range minima {
			if d[tau] < th {
				found = tau
				break
			}
		}
		if found >= 0 {
			probs[found] += prior[i]
		} else {
			probs[globalMin] += prior[i] * globalMinWeight
		}
	}

	out := make([]candidate, 0, len(probs))
	for _, tau := range minima {
		p, ok := probs[tau]
		if !ok || p <= 0 {
			continue
		}
		out = append(out, candidate{
			freq: float64(sampleRate) / parabolicTau(d, tau),
			prob: p,
		})
	}
	return out
}

func blockRMS(block []float64) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, v := range block {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(block)))
}

// suppressLowAmplitude scales candidate probabilities of quiet frames.
func suppressLowAmplitude(cands []candidate, rms float64, lowAmp float64) {
	if lowAmp <= 0 || rms >= lowAmp {
		return
	}
	factor := (rms + 0.01*lowAmp) / (1.01 * lowAmp)
	for i := range cands {
		cands[i].prob *= factor
	}
}
