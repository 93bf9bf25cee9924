package render

import dspcore "github.com/cwbudde/algo-dsp/dsp/core"

// pluckedString is a digital waveguide string: a fractional delay line closed
// by a one-pole loop lowpass and a reflection gain.
type pluckedString struct {
	delayLength float64
	delayLine   []float64
	writePos    int

	reflection       float64
	baseReflection   float64
	damperReflection float64

	lowpassCoeff float64
	loopState    float64
}

func newPluckedString(sampleRate int, f0 float64) *pluckedString {
	s := &pluckedString{
		reflection:       0.996,
		baseReflection:   0.996,
		damperReflection: 0.9,
		lowpassCoeff:     0.3,
	}
	s.delayLength = float64(sampleRate) / f0
	intDelay := int(s.delayLength)
	if intDelay < 2 {
		intDelay = 2
	}
	s.delayLine = make([]float64, intDelay+4)
	return s
}

func (s *pluckedString) process() float64 {
	out := s.readDelayFractional(s.delayLength)
	lp := (1.0-s.lowpassCoeff)*out + s.lowpassCoeff*s.loopState
	lp = dspcore.FlushDenormals(lp)
	s.loopState = lp
	s.delayLine[s.writePos] = dspcore.FlushDenormals(lp * s.reflection)
	s.writePos = (s.writePos + 1) % len(s.delayLine)
	return out
}

// pluck loads a triangular displacement peaking at pos in (0,1).
func (s *pluckedString) pluck(amp float64, pos float64) {
	pos = min(max(pos, 0.01), 0.99)
	n := len(s.delayLine)
	peak := int(float64(n) * pos)
	for i := 0; i < n; i++ {
		var v float64
		if i <= peak {
			v = float64(i) / float64(max(peak, 1))
		} else {
			v = float64(n-i) / float64(max(n-peak, 1))
		}
		s.delayLine[(s.writePos+i)%n] += amp * (v - 0.5) * 2
	}
}

// damp switches to the fast-decaying reflection used after note off.
func (s *pluckedString) damp(engaged bool) {
	if engaged {
		s.reflection = s.damperReflection
		return
	}
	s.reflection = s.baseReflection
}

func (s *pluckedString) readDelayFractional(delay float64) float64 {
	intDelay := int(delay)
	frac := delay - float64(intDelay)
	n := len(s.delayLine)
	p1 := (s.writePos - intDelay + n) % n
	p2 := (s.writePos - intDelay - 1 + n) % n
	return s.delayLine[p1]*(1.0-frac) + s.delayLine[p2]*frac
}
