package analysis

import (
	"math"

	"github.com/cwbudde/notetrack/dsp"
)

// StrengthConfig describes the mel spectrogram behind OffsetStrength.
type StrengthConfig struct {
	NFFT  int     `json:"n_fft"`
	Hop   int     `json:"hop"`
	NMels int     `json:"n_mels"`
	FMin  float64 `json:"fmin"`
	FMax  float64 `json:"fmax"`
	Lag   int     `json:"lag"`
	TopDB float64 `json:"top_db"`
}

func DefaultStrengthConfig() StrengthConfig {
	return StrengthConfig{
		NFFT:  2048,
		Hop:   256,
		NMels: 128,
		FMin:  0,
		FMax:  11025,
		Lag:   1,
		TopDB: 80,
	}
}

// OffsetStrength is the spectral-flux envelope of energy decreases: the
// mel dB spectrogram's negated lag difference, floored at zero and averaged
// over bands. It is left padded by Lag+NFFT/(2*Hop) frames so frame t lines
// up with the spectrogram frame centred on sample t*Hop, then trimmed to the
// spectrogram length.
func OffsetStrength(x []float64, sampleRate int, cfg StrengthConfig) ([]float64, error) {
	spec, err := dsp.STFT(x, cfg.NFFT, cfg.Hop, true)
	if err != nil {
		return nil, err
	}
	fmax := cfg.FMax
	if nyq := float64(sampleRate) / 2; fmax <= 0 || fmax > nyq {
		fmax = nyq
	}
	fb := dsp.MelFilterBank(sampleRate, cfg.NFFT, cfg.NMels, cfg.FMin, fmax)
	db := dsp.PowerToDB(dsp.MelSpectrogram(spec.Power(), fb), 1.0, 1e-10, cfg.TopDB)

	frames := len(db)
	out := make([]float64, frames)
	pad := cfg.Lag + cfg.NFFT/(2*cfg.Hop)
	for t := cfg.Lag; t < frames; t++ {
		dst := t - cfg.Lag + pad
		if dst >= frames {
			break
		}
		var sum float64
		cur, prev := db[t], db[t-cfg.Lag]
		for m := range cur {
			sum += math.Max(0, prev[m]-cur[m])
		}
		out[dst] = sum / float64(len(cur))
	}
	return out, nil
}

// DecayRate returns -diff(ln e), one value shorter than e.
func DecayRate(e []float64) []float64 {
	if len(e) < 2 {
		return nil
	}
	out := make([]float64, len(e)-1)
	for i := range out {
		out[i] = math.Log(e[i]) - math.Log(e[i+1])
	}
	return out
}

// OffsetLikelihood combines strength and decay over their common length as
// max(0, decay*strength/rms). The result is never negative.
func OffsetLikelihood(strength, decay, rms []float64) []float64 {
	n := min(len(strength), len(decay), len(rms))
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		v := decay[t] * strength[t] / rms[t]
		if v > 0 {
			out[t] = v
		}
	}
	return out
}
