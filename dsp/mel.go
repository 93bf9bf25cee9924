package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	melFSp       = 200.0 / 3.0
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

// HzToMel converts frequency to the Slaney mel scale.
func HzToMel(f float64) float64 {
	if f >= melMinLogHz {
		return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
	}
	return f / melFSp
}

// MelToHz is the inverse of HzToMel.
func MelToHz(m float64) float64 {
	if m >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
	}
	return melFSp * m
}

// MelFilterBank returns nMels triangular, area-normalised filters over the
// nFFT/2+1 STFT bins, laid out as [mel][bin].
func MelFilterBank(sampleRate int, nFFT int, nMels int, fmin float64, fmax float64) [][]float64 {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	floats.Span(fftFreqs, 0, float64(sampleRate)/2)

	melPts := make([]float64, nMels+2)
	floats.Span(melPts, HzToMel(fmin), HzToMel(fmax))
	hzPts := make([]float64, len(melPts))
	for i, m := range melPts {
		hzPts[i] = MelToHz(m)
	}

	fb := make([][]float64, nMels)
	for i := 0; i < nMels; i++ {
		row := make([]float64, bins)
		lo, mid, hi := hzPts[i], hzPts[i+1], hzPts[i+2]
		enorm := 2.0 / (hi - lo)
		for k, f := range fftFreqs {
			lower := (f - lo) / (mid - lo)
			upper := (hi - f) / (hi - mid)
			w := math.Max(0, math.Min(lower, upper))
			row[k] = w * enorm
		}
		fb[i] = row
	}
	return fb
}

// MelSpectrogram projects a [frame][bin] power spectrogram onto fb and
// returns [frame][mel].
func MelSpectrogram(power [][]float64, fb [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	for t, row := range power {
		mel := make([]float64, len(fb))
		for m, filt := range fb {
			mel[m] = floats.Dot(filt, row)
		}
		out[t] = mel
	}
	return out
}

// PowerToDB converts power to decibels relative to ref, flooring inputs at
// amin and clipping everything more than topDB below the global peak.
// A non-positive topDB disables clipping.
func PowerToDB(s [][]float64, ref float64, amin float64, topDB float64) [][]float64 {
	refDB := 10 * math.Log10(math.Max(amin, ref))
	peak := math.Inf(-1)
	out := make([][]float64, len(s))
	for t, row := range s {
		db := make([]float64, len(row))
		for i, v := range row {
			db[i] = 10*math.Log10(math.Max(amin, v)) - refDB
		}
		if len(db) > 0 {
			peak = math.Max(peak, floats.Max(db))
		}
		out[t] = db
	}
	if topDB > 0 && !math.IsInf(peak, -1) {
		floor := peak - topDB
		for _, row := range out {
			for i, v := range row {
				if v < floor {
					row[i] = floor
				}
			}
		}
	}
	return out
}
