package audioio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteThenReadMonoWAV(t *testing.T) {
	sr := 22050
	in := make([]float64, sr/4)
	for i := range in {
		in[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/float64(sr))
	}
	path := filepath.Join(t.TempDir(), "nested", "tone.wav")
	if err := WriteMonoWAV(path, in, sr); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := ReadWAVMono(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if b.SampleRate != sr {
		t.Fatalf("sample rate = %d, want %d", b.SampleRate, sr)
	}
	if len(b.Samples) != len(in) {
		t.Fatalf("frames = %d, want %d", len(b.Samples), len(in))
	}
	if got := b.Duration(); math.Abs(got-0.25) > 1e-3 {
		t.Fatalf("duration = %f, want 0.25", got)
	}
}

func TestReadWAVMonoRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("not a riff file at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadWAVMono(path)
	if !errors.Is(err, ErrInvalidAudio) {
		t.Fatalf("err = %v, want ErrInvalidAudio", err)
	}
}

func TestReadWAVMonoMissingFile(t *testing.T) {
	_, err := ReadWAVMono(filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, ErrInvalidAudio) {
		t.Fatalf("err = %v, want ErrInvalidAudio", err)
	}
}

func TestResampleIfNeededSameRateIsIdentity(t *testing.T) {
	in := []float64{1, 2, 3}
	out, err := ResampleIfNeeded(in, 44100, 44100)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if &out[0] != &in[0] {
		t.Fatal("expected input slice to be returned unchanged")
	}
}
