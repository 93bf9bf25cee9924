package render

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
)

const bodyBlockSize = 256

// BodyConfig shapes the synthetic guitar-top impulse response the string
// output is convolved with. Modes follow an orthotropic plate.
type BodyConfig struct {
	DurationS float64
	Modes     int
	Seed      int64
	// LowestHz is the (1,1) plate mode.
	LowestHz       float64
	PlateRatio     float64 // Lx/Ly
	StiffnessRatio float64 // Dx/Dy
	DirectLevel    float64
	LowDecayS      float64
	HighDecayS     float64
	CrossoverHz    float64
	FadeOutS       float64
}

func DefaultBodyConfig() BodyConfig {
	return BodyConfig{
		DurationS:      0.08,
		Modes:          24,
		Seed:           1,
		LowestHz:       100,
		PlateRatio:     1.3,
		StiffnessRatio: 10,
		DirectLevel:    0.7,
		LowDecayS:      0.05,
		HighDecayS:     0.012,
		CrossoverHz:    600,
		FadeOutS:       0.005,
	}
}

func (c *BodyConfig) Validate() error {
	if c.DurationS <= 0 || c.Modes < 1 {
		return fmt.Errorf("body: duration and modes must be > 0")
	}
	if c.LowestHz <= 0 || c.PlateRatio <= 0 || c.StiffnessRatio <= 0 {
		return fmt.Errorf("body: plate parameters must be > 0")
	}
	if c.DirectLevel < 0 || c.LowDecayS <= 0 || c.HighDecayS <= 0 || c.CrossoverHz <= 0 {
		return fmt.Errorf("body: level, decays and crossover out of range")
	}
	return nil
}

// BodyIR synthesizes a mono body response normalised to unit peak.
func BodyIR(cfg BodyConfig, sampleRate int) ([]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := max(1, int(math.Round(cfg.DurationS*float64(sampleRate))))
	buf := make([]float64, n)
	buf[0] = cfg.DirectLevel

	rng := rand.New(rand.NewSource(cfg.Seed))
	maxF := 0.45 * float64(sampleRate)
	logCross := math.Log(cfg.CrossoverHz)
	for _, f := range plateModes(cfg.LowestHz, maxF, cfg.Modes, cfg.PlateRatio, cfg.StiffnessRatio) {
		amp := 0.9 / (1 + f/200)
		amp *= 0.7 + 0.6*rng.Float64()
		// sigmoid in log frequency between the two decay times
		blend := 1 / (1 + math.Exp(-3*(math.Log(f)-logCross)))
		tau := cfg.LowDecayS*(1-blend) + cfg.HighDecayS*blend
		decay := math.Exp(-1 / (tau * float64(sampleRate)))
		addMode(buf, amp, f, rng.Float64()*2*math.Pi, decay, sampleRate)
	}

	if fade := int(math.Round(cfg.FadeOutS * float64(sampleRate))); fade > 0 {
		fade = min(fade, n)
		for i := 0; i < fade; i++ {
			buf[n-fade+i] *= 0.5 * (1 + math.Cos(math.Pi*float64(i)/float64(fade)))
		}
	}
	normalize(buf, 1)
	return buf, nil
}

// plateModes returns up to maxModes eigenfrequencies of a simply supported
// orthotropic plate in [f11, maxF], ascending.
func plateModes(f11, maxF float64, maxModes int, r, s float64) []float64 {
	sqrtS := math.Sqrt(s)
	r2 := r * r
	denom := math.Sqrt(s + 2*sqrtS*r2 + r2*r2)
	mMax := int(math.Sqrt(maxF/f11*denom/sqrtS)) + 2
	nMax := int(math.Sqrt(maxF/f11*denom)) + 2

	var freqs []float64
	for m := 1; m <= mMax; m++ {
		m2 := float64(m * m)
		for k := 1; k <= nMax; k++ {
			k2 := float64(k * k)
			f := f11 * math.Sqrt(s*m2*m2+2*sqrtS*m2*k2*r2+k2*k2*r2*r2) / denom
			if f > maxF {
				break
			}
			freqs = append(freqs, f)
		}
	}
	sort.Float64s(freqs)
	if len(freqs) > maxModes {
		freqs = freqs[:maxModes]
	}
	return freqs
}

// addMode adds an exponentially decaying sinusoid using the Chebyshev
// recurrence.
func addMode(out []float64, amp, freq, phase, decay float64, sampleRate int) {
	if len(out) == 0 {
		return
	}
	w := 2 * math.Pi * freq / float64(sampleRate)
	cw := math.Cos(w)
	x0, x1 := math.Cos(phase), math.Cos(phase+w)
	env := 1.0
	out[0] += amp * x0
	if len(out) == 1 {
		return
	}
	env *= decay
	out[1] += amp * env * x1
	for i := 2; i < len(out); i++ {
		x0, x1 = x1, 2*cw*x1-x0
		env *= decay
		out[i] += amp * env * x1
	}
}

// convolveBody filters x through ir in place with a streaming overlap-add
// convolver. The tail past len(x) is dropped.
func convolveBody(x, ir []float64) error {
	if len(x) == 0 || len(ir) == 0 {
		return nil
	}
	ir32 := make([]float32, len(ir))
	for i, v := range ir {
		ir32[i] = float32(v)
	}
	ola, err := dspconv.NewStreamingOverlapAdd32(ir32, bodyBlockSize)
	if err != nil {
		return fmt.Errorf("body convolver: %w", err)
	}
	in := make([]float32, bodyBlockSize)
	out := make([]float32, bodyBlockSize)
	for pos := 0; pos < len(x); pos += bodyBlockSize {
		end := min(pos+bodyBlockSize, len(x))
		clear(in)
		for i := pos; i < end; i++ {
			in[i-pos] = float32(x[i])
		}
		if err := ola.ProcessBlockTo(out, in); err != nil {
			return fmt.Errorf("body convolver: %w", err)
		}
		for i := pos; i < end; i++ {
			x[i] = float64(out[i-pos])
		}
	}
	return nil
}

func normalize(x []float64, peak float64) {
	var m float64
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	if m > 0 {
		g := peak / m
		for i := range x {
			x[i] *= g
		}
	}
}
