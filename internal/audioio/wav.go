// Package audioio loads and writes the WAV buffers the annotation tools work on.
package audioio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ErrInvalidAudio reports a missing, unreadable or malformed audio file.
var ErrInvalidAudio = errors.New("invalid audio")

// Buffer is a decoded mono signal at its sample rate.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// ReadWAVMono decodes path and averages all channels down to mono.
func ReadWAVMono(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("%w: not a wav file: %s", ErrInvalidAudio, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %s: %v", ErrInvalidAudio, path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return Buffer{}, fmt.Errorf("%w: invalid wav buffer: %s", ErrInvalidAudio, path)
	}
	if buf.Format.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: invalid sample rate %d: %s", ErrInvalidAudio, buf.Format.SampleRate, path)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return Buffer{Samples: out, SampleRate: buf.Format.SampleRate}, nil
}

// Load reads path and resamples it when targetRate is positive and differs
// from the file rate. A zero targetRate keeps the native rate.
func Load(path string, targetRate int) (Buffer, error) {
	b, err := ReadWAVMono(path)
	if err != nil {
		return Buffer{}, err
	}
	if targetRate <= 0 {
		return b, nil
	}
	samples, err := ResampleIfNeeded(b.Samples, b.SampleRate, targetRate)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: resample %d->%d: %v", ErrInvalidAudio, b.SampleRate, targetRate, err)
	}
	return Buffer{Samples: samples, SampleRate: targetRate}, nil
}

func ResampleIfNeeded(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// WriteMonoWAV writes 16-bit mono PCM, creating parent directories.
func WriteMonoWAV(path string, data []float64, sampleRate int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	defer enc.Close()

	samples := make([]float32, len(data))
	for i, v := range data {
		samples[i] = float32(v)
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}
