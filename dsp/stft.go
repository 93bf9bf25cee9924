package dsp

import (
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Spectrogram is a complex STFT laid out as [frame][bin], bins 0..NFFT/2.
type Spectrogram struct {
	NFFT   int
	Hop    int
	Frames [][]complex128
}

// Bins returns the number of frequency bins per frame.
func (s *Spectrogram) Bins() int {
	return s.NFFT/2 + 1
}

// HannPeriodic returns the DFT-even Hann window of length n.
func HannPeriodic(n int) []float64 {
	if n <= 1 {
		return []float64{1}
	}
	return window.Hann(n + 1)[:n]
}

// STFT computes the short-time Fourier transform of x. With center set the
// signal is reflect-padded by nFFT/2 on both sides so frame t is centred on
// sample t*hop.
func STFT(x []float64, nFFT int, hop int, center bool) (*Spectrogram, error) {
	if nFFT < 2 || hop < 1 {
		return nil, fmt.Errorf("stft: invalid n_fft=%d hop=%d", nFFT, hop)
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("stft: empty input")
	}
	if center {
		x = ReflectPad(x, nFFT/2)
	}
	if len(x) < nFFT {
		padded := make([]float64, nFFT)
		copy(padded, x)
		x = padded
	}
	plan, err := algofft.NewPlanReal64(nFFT)
	if err != nil {
		return nil, fmt.Errorf("stft: fft plan: %w", err)
	}
	win := HannPeriodic(nFFT)
	n := 1 + (len(x)-nFFT)/hop
	out := &Spectrogram{NFFT: nFFT, Hop: hop, Frames: make([][]complex128, n)}
	buf := make([]float64, nFFT)
	for t := 0; t < n; t++ {
		start := t * hop
		for i := 0; i < nFFT; i++ {
			buf[i] = x[start+i] * win[i]
		}
		spec := make([]complex128, nFFT/2+1)
		plan.Forward(spec, buf)
		out.Frames[t] = spec
	}
	return out, nil
}

// ISTFT inverts s by weighted overlap-add and returns exactly length samples.
// It assumes s was produced by STFT with center set.
func ISTFT(s *Spectrogram, length int) []float64 {
	nFFT := s.NFFT
	win := HannPeriodic(nFFT)
	total := nFFT + s.Hop*(len(s.Frames)-1)
	if len(s.Frames) == 0 {
		total = nFFT
	}
	y := make([]float64, total)
	wsum := make([]float64, total)
	full := make([]complex128, nFFT)
	for t, frame := range s.Frames {
		for k := 0; k < len(frame); k++ {
			full[k] = frame[k]
		}
		for k := len(frame); k < nFFT; k++ {
			c := frame[nFFT-k]
			full[k] = complex(real(c), -imag(c))
		}
		td := fft.IFFT(full)
		start := t * s.Hop
		for i := 0; i < nFFT; i++ {
			y[start+i] += real(td[i]) * win[i]
			wsum[start+i] += win[i] * win[i]
		}
	}
	for i := range y {
		if wsum[i] > 1e-8 {
			y[i] /= wsum[i]
		}
	}
	off := nFFT / 2
	out := make([]float64, length)
	for i := 0; i < length && off+i < len(y); i++ {
		out[i] = y[off+i]
	}
	return out
}

// Power returns |X|^2 for every frame and bin.
func (s *Spectrogram) Power() [][]float64 {
	out := make([][]float64, len(s.Frames))
	for t, frame := range s.Frames {
		row := make([]float64, len(frame))
		for k, c := range frame {
			row[k] = real(c)*real(c) + imag(c)*imag(c)
		}
		out[t] = row
	}
	return out
}

// ReflectPad mirrors x by n samples on each side without repeating the edge
// sample, the way numpy's "reflect" mode does.
func ReflectPad(x []float64, n int) []float64 {
	out := make([]float64, len(x)+2*n)
	for i := range out {
		out[i] = x[reflectIndex(i-n, len(x))]
	}
	return out
}

func reflectIndex(i int, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
