package dsp

import (
	"math"
	"math/cmplx"
)

func cabs(c complex128) float64 {
	return cmplx.Abs(c)
}

func pow(x, p float64) float64 {
	if p == 2 {
		return x * x
	}
	return math.Pow(x, p)
}
