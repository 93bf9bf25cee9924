package dsp

import "math"

// RMS returns the framewise root-mean-square energy of x. With center set
// the signal is reflect-padded by frameLength/2 so frame t is centred on
// sample t*hop.
func RMS(x []float64, frameLength int, hop int, center bool) []float64 {
	if len(x) == 0 || frameLength < 1 || hop < 1 {
		return nil
	}
	if center {
		x = ReflectPad(x, frameLength/2)
	}
	if len(x) < frameLength {
		return nil
	}
	n := 1 + (len(x)-frameLength)/hop
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		start := t * hop
		var sum float64
		for _, v := range x[start : start+frameLength] {
			sum += v * v
		}
		out[t] = math.Sqrt(sum / float64(frameLength))
	}
	return out
}
