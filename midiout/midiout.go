// Package midiout builds standard MIDI files from analyzer notes and JAMS
// note annotations.
package midiout

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cwbudde/notetrack/dsp"
	"github.com/cwbudde/notetrack/jams"
	"github.com/cwbudde/notetrack/pyin"
)

// Options controls file layout and the fixed note attributes.
type Options struct {
	TicksPerQuarter uint16
	BPM             float64
	Program         uint8
	Velocity        uint8
}

func DefaultOptions() Options {
	return Options{
		TicksPerQuarter: 480,
		BPM:             120,
		Program:         25,
		Velocity:        100,
	}
}

// Event is one note in seconds. Bend is a 14-bit signed pitch-bend value
// sent at the note start when HasBend is set.
type Event struct {
	Start    float64
	End      float64
	Key      uint8
	Velocity uint8
	Bend     int16
	HasBend  bool
}

// Part is one instrument track.
type Part struct {
	Name   string
	Events []Event
}

// KeyForMIDI rounds a fractional MIDI number to a valid key.
func KeyForMIDI(m float64) uint8 {
	k := math.Round(m)
	if k < 0 {
		return 0
	}
	if k > 127 {
		return 127
	}
	return uint8(k)
}

// KeyForHz rounds a frequency to the nearest MIDI key.
func KeyForHz(f float64) uint8 {
	if f <= 0 {
		return 0
	}
	return KeyForMIDI(dsp.HzToMIDI(f))
}

// FromNotes builds a single-part file from analyzer note events.
func FromNotes(notes []pyin.Note, opt Options) (*smf.SMF, error) {
	part := Part{Name: "pyin"}
	for _, n := range notes {
		part.Events = append(part.Events, Event{
			Start:    n.Onset,
			End:      n.Onset + n.Duration,
			Key:      KeyForHz(n.Frequency),
			Velocity: opt.Velocity,
		})
	}
	return Build([]Part{part}, opt)
}

// JAMSOptions adds the rendering choices for annotation files.
type JAMSOptions struct {
	Options
	PitchBend bool
	// Seed drives the velocity jitter in [-5,5).
	Seed int64
}

func DefaultJAMSOptions() JAMSOptions {
	return JAMSOptions{Options: DefaultOptions(), PitchBend: true, Seed: 1}
}

// FromJAMS builds a file from PartsFromJAMS.
func FromJAMS(f *jams.File, opt JAMSOptions) (*smf.SMF, error) {
	parts, err := PartsFromJAMS(f, opt)
	if err != nil {
		return nil, err
	}
	return Build(parts, opt.Options)
}

// PartsFromJAMS returns one part per note_midi annotation (pitch_midi when
// there are none). Annotations without notes are skipped.
func PartsFromJAMS(f *jams.File, opt JAMSOptions) ([]Part, error) {
	rng := rand.New(rand.NewSource(opt.Seed))
	var parts []Part
	for i, anno := range f.NoteAnnotations() {
		notes, err := anno.Notes()
		if err != nil {
			return nil, err
		}
		if len(notes) == 0 {
			continue
		}
		part := Part{Name: fmt.Sprintf("%s %d", anno.Namespace, i)}
		for _, n := range notes {
			key := KeyForMIDI(n.MIDI)
			vel := int(opt.Velocity) + rng.Intn(10) - 5
			ev := Event{
				Start:    n.Time,
				End:      n.Time + n.Duration,
				Key:      key,
				Velocity: uint8(min(max(vel, 1), 127)),
			}
			if opt.PitchBend {
				ev.Bend = int16(math.Round((n.MIDI - math.Round(n.MIDI)) * 4096))
				ev.HasBend = true
			}
			part.Events = append(part.Events, ev)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

type timed struct {
	tick  uint32
	order int
	msg   midi.Message
}

// Build writes a tempo track followed by one track per part. Part i plays on
// channel i, skipping the percussion channel.
func Build(parts []Part, opt Options) (*smf.SMF, error) {
	if opt.TicksPerQuarter == 0 || opt.BPM <= 0 {
		return nil, fmt.Errorf("midiout: invalid ticks=%d bpm=%f", opt.TicksPerQuarter, opt.BPM)
	}
	if len(parts) > 15 {
		return nil, fmt.Errorf("midiout: %d parts exceed the available channels", len(parts))
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opt.TicksPerQuarter)

	var tempo smf.Track
	tempo.Add(0, smf.MetaTrackSequenceName("tempo"))
	tempo.Add(0, smf.MetaTempo(opt.BPM))
	tempo.Close(0)
	if err := s.Add(tempo); err != nil {
		return nil, err
	}

	ticksPerSecond := float64(opt.TicksPerQuarter) * opt.BPM / 60
	toTicks := func(sec float64) uint32 {
		if sec <= 0 {
			return 0
		}
		return uint32(math.Round(sec * ticksPerSecond))
	}

	for i, p := range parts {
		ch := uint8(i)
		if ch >= 9 {
			ch++
		}
		var evs []timed
		for _, e := range p.Events {
			on, off := toTicks(e.Start), toTicks(e.End)
			if off <= on {
				off = on + 1
			}
			if e.HasBend {
				evs = append(evs, timed{tick: on, order: 1, msg: midi.Pitchbend(ch, e.Bend)})
			}
			evs = append(evs,
				timed{tick: on, order: 2, msg: midi.NoteOn(ch, e.Key, e.Velocity)},
				timed{tick: off, order: 0, msg: midi.NoteOff(ch, e.Key)},
			)
		}
		sort.SliceStable(evs, func(a, b int) bool {
			if evs[a].tick != evs[b].tick {
				return evs[a].tick < evs[b].tick
			}
			return evs[a].order < evs[b].order
		})

		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(p.Name))
		tr.Add(0, midi.ProgramChange(ch, opt.Program))
		var last uint32
		for _, e := range evs {
			tr.Add(e.tick-last, e.msg)
			last = e.tick
		}
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WriteFile writes s to path, replacing any existing file.
func WriteFile(path string, s *smf.SMF) error {
	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("write midi %s: %w", path, err)
	}
	return nil
}

// WriteFileIfAbsent writes s unless path already exists. It reports whether
// the file was written.
func WriteFileIfAbsent(path string, s *smf.SMF) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := WriteFile(path, s); err != nil {
		return false, err
	}
	return true, nil
}
