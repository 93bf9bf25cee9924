package dsp

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// HPSSConfig controls median-filter harmonic/percussive separation.
type HPSSConfig struct {
	NFFT   int     `json:"n_fft"`
	Hop    int     `json:"hop"`
	Kernel int     `json:"kernel"` // median filter length, both axes
	Power  float64 `json:"power"`  // soft-mask exponent
}

func DefaultHPSSConfig() HPSSConfig {
	return HPSSConfig{
		NFFT:   2048,
		Hop:    512,
		Kernel: 31,
		Power:  2.0,
	}
}

// Harmonic returns the harmonic component of x: the STFT magnitude is
// median-filtered along time (harmonic) and frequency (percussive), the two
// are combined into a soft mask and the masked STFT is inverted.
func Harmonic(x []float64, cfg HPSSConfig) ([]float64, error) {
	if cfg.Kernel < 1 || cfg.Power <= 0 {
		return nil, fmt.Errorf("hpss: invalid kernel=%d power=%f", cfg.Kernel, cfg.Power)
	}
	spec, err := STFT(x, cfg.NFFT, cfg.Hop, true)
	if err != nil {
		return nil, err
	}
	frames := len(spec.Frames)
	bins := spec.Bins()
	mag := make([][]float64, frames)
	for t, row := range spec.Frames {
		m := make([]float64, bins)
		for k, c := range row {
			m[k] = cabs(c)
		}
		mag[t] = m
	}

	harm := make([][]float64, frames)
	perc := make([][]float64, frames)
	for t := range mag {
		harm[t] = make([]float64, bins)
		perc[t] = medianFilter(mag[t], cfg.Kernel)
	}
	col := make([]float64, frames)
	for k := 0; k < bins; k++ {
		for t := range mag {
			col[t] = mag[t][k]
		}
		filtered := medianFilter(col, cfg.Kernel)
		for t := range mag {
			harm[t][k] = filtered[t]
		}
	}

	for t, row := range spec.Frames {
		for k := range row {
			row[k] *= complex(softMask(harm[t][k], perc[t][k], cfg.Power), 0)
		}
	}
	return ISTFT(spec, len(x)), nil
}

func softMask(x, ref, power float64) float64 {
	const tiny = 1e-300
	z := x
	if ref > z {
		z = ref
	}
	if z < tiny {
		return 0
	}
	xp := pow(x/z, power)
	rp := pow(ref/z, power)
	return xp / (xp + rp)
}

// medianFilter applies a centred running median with scipy-style "reflect"
// edges (d c b a | a b c d | d c b a).
func medianFilter(x []float64, size int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	half := size / 2
	win := make([]float64, size)
	for i := 0; i < n; i++ {
		for j := 0; j < size; j++ {
			win[j] = x[symmetricIndex(i-half+j, n)]
		}
		sort.Float64s(win)
		out[i] = stat.Quantile(0.5, stat.Empirical, win, nil)
	}
	return out
}

func symmetricIndex(i int, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
