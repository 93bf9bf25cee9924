// Package dsp provides the frame-based spectral features the annotation
// tools are built on.
//
// Included:
//   - STFT / ISTFT with centred reflect padding and a periodic Hann window.
//   - Mel filterbanks, mel power spectrograms and power-to-dB conversion.
//   - Framewise RMS energy.
//   - Median-filter harmonic/percussive separation.
//   - A biquad filter used for tone shaping when rendering notes.
//   - Hz / MIDI / frame / time conversions.
package dsp
