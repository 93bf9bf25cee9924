package pyin

import "math"

// pitchHMM is the two-states-per-bin voicing/pitch HMM that smooths the
// frame-wise YIN candidates. States 0..nPitch-1 are voiced, nPitch..2nPitch-1
// unvoiced copies of the same bins.
type pitchHMM struct {
	minFreq        float64
	binsPerOctave  float64
	nPitch         int
	yinTrust       float64
	selfTransition float64

	// sparse transitions: for source bin i, successors [lo[i], hi[i]] with
	// weights w[i][j-lo[i]] summing to 1.
	lo, hi []int
	w      [][]float64
}

func newPitchHMM(cfg Config) *pitchHMM {
	n := cfg.Semitones * cfg.BinsPerSemitone
	h := &pitchHMM{
		minFreq:        cfg.MinFreq,
		binsPerOctave:  float64(12 * cfg.BinsPerSemitone),
		nPitch:         n,
		yinTrust:       cfg.YinTrust,
		selfTransition: cfg.SelfTransition,
		lo:             make([]int, n),
		hi:             make([]int, n),
		w:              make([][]float64, n),
	}
	halfWidth := cfg.TransitionWidth / 2
	for i := 0; i < n; i++ {
		lo := max(0, i-halfWidth)
		hi := min(n-1, i+halfWidth)
		ws := make([]float64, hi-lo+1)
		var sum float64
		for j := lo; j <= hi; j++ {
			v := float64(halfWidth + 1 - abs(i-j))
			ws[j-lo] = v
			sum += v
		}
		for k := range ws {
			ws[k] /= sum
		}
		h.lo[i], h.hi[i], h.w[i] = lo, hi, ws
	}
	return h
}

func (h *pitchHMM) binFreq(bin int) float64 {
	return h.minFreq * math.Pow(2, float64(bin)/h.binsPerOctave)
}

// freqBin returns the nearest bin for f, or -1 when f is outside the grid.
func (h *pitchHMM) freqBin(f float64) int {
	if f <= 0 {
		return -1
	}
	b := int(math.Round(h.binsPerOctave * math.Log2(f/h.minFreq)))
	if b < 0 || b >= h.nPitch {
		return -1
	}
	return b
}

// observation builds the emission vector of one frame.
func (h *pitchHMM) observation(cands []candidate) []float64 {
	obs := make([]float64, 2*h.nPitch)
	var pitched float64
	for _, c := range cands {
		b := h.freqBin(c.freq)
		if b < 0 {
			continue
		}
		obs[b] += c.prob
		pitched += c.prob
	}
	if pitched > 1 {
		pitched = 1
	}
	really := h.yinTrust * pitched
	if pitched > 0 {
		scale := really / pitched
		for i := 0; i < h.nPitch; i++ {
			obs[i] *= scale
		}
	}
	u := (1 - really) / float64(h.nPitch)
	for i := h.nPitch; i < 2*h.nPitch; i++ {
		obs[i] = u
	}
	return obs
}

// viterbi returns the most likely state path for the observation sequence.
func (h *pitchHMM) viterbi(obs [][]float64) []int {
	T := len(obs)
	if T == 0 {
		return nil
	}
	S := 2 * h.nPitch
	delta := make([]float64, S)
	next := make([]float64, S)
	psi := make([][]int16, T)

	for s := 0; s < S; s++ {
		delta[s] = obs[0][s] / float64(S)
	}
	normalize(delta)

	for t := 1; t < T; t++ {
		for s := range next {
			next[s] = 0
		}
		back := make([]int16, S)
		for i := 0; i < S; i++ {
			di := delta[i]
			if di == 0 {
				continue
			}
			bin := i % h.nPitch
			voiced := i < h.nPitch
			lo, ws := h.lo[bin], h.w[bin]
			for k, w := range ws {
				j := lo + k
				same, other := j, j+h.nPitch
				if !voiced {
					same, other = j+h.nPitch, j
				}
				if v := di * w * h.selfTransition; v > next[same] {
					next[same] = v
					back[same] = int16(i)
				}
				if v := di * w * (1 - h.selfTransition); v > next[other] {
					next[other] = v
					back[other] = int16(i)
				}
			}
		}
		for s := 0; s < S; s++ {
			next[s] *= obs[t][s]
		}
		if !normalize(next) {
			// dead end: restart from the observation alone
			for s := 0; s < S; s++ {
				next[s] = obs[t][s]
			}
			normalize(next)
		}
		psi[t] = back
		delta, next = next, delta
	}

	path := make([]int, T)
	best := 0
	for s := 1; s < S; s++ {
		if delta[s] > delta[best] {
			best = s
		}
	}
	path[T-1] = best
	for t := T - 1; t > 0; t-- {
		path[t-1] = int(psi[t][path[t]])
	}
	return path
}

// pathFrequency resolves a state into a frequency and voicing flag, snapping
// to the most probable YIN candidate within one semitone of the state bin.
func (h *pitchHMM) pathFrequency(state int, cands []candidate, binsPerSemitone int) (float64, bool) {
	bin := state % h.nPitch
	voiced := state < h.nPitch
	f := h.binFreq(bin)
	bestProb := 0.0
	for _, c := range cands {
		b := h.freqBin(c.freq)
		if b < 0 || abs(b-bin) > binsPerSemitone {
			continue
		}
		if c.prob > bestProb {
			bestProb = c.prob
			f = c.freq
		}
	}
	return f, voiced
}

func normalize(x []float64) bool {
	var sum float64
	for _, v := range x {
		sum += v
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return false
	}
	for i := range x {
		x[i] /= sum
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
