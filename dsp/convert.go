package dsp

import "math"

// HzToMIDI converts frequency to a fractional MIDI note number (A4 = 69).
func HzToMIDI(f float64) float64 {
	return 12*(math.Log2(f)-math.Log2(440.0)) + 69
}

// MIDIToHz converts a fractional MIDI note number to frequency.
func MIDIToHz(n float64) float64 {
	return 440.0 * math.Pow(2, (n-69)/12)
}

// FramesToTime returns the start time in seconds of frame f.
func FramesToTime(f int, hop int, sampleRate int) float64 {
	return float64(f*hop) / float64(sampleRate)
}

// TimeToSamples truncates t*sampleRate to a sample index.
func TimeToSamples(t float64, sampleRate int) int {
	return int(t * float64(sampleRate))
}
