package jams

import (
	"encoding/json"
	"fmt"
)

// Note is a note_midi or pitch_midi observation.
type Note struct {
	Time     float64
	Duration float64
	MIDI     float64
}

// Notes decodes every observation value as a (fractional) MIDI number.
func (a *Annotation) Notes() ([]Note, error) {
	out := make([]Note, len(a.Data))
	for i, o := range a.Data {
		var v float64
		if err := json.Unmarshal(o.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidAnnotation, a.Namespace, i, err)
		}
		out[i] = Note{Time: o.Time, Duration: o.Duration, MIDI: v}
	}
	return out, nil
}

// ContourPoint is a pitch_contour observation.
type ContourPoint struct {
	Time      float64 `json:"-"`
	Frequency float64 `json:"frequency"`
	Voiced    bool    `json:"voiced"`
	Index     int     `json:"index"`
}

func (a *Annotation) PitchContour() ([]ContourPoint, error) {
	out := make([]ContourPoint, len(a.Data))
	for i, o := range a.Data {
		var p ContourPoint
		if err := json.Unmarshal(o.Value, &p); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidAnnotation, a.Namespace, i, err)
		}
		p.Time = o.Time
		out[i] = p
	}
	return out, nil
}

// Beat is a beat_position observation; Position 1 marks a downbeat.
type Beat struct {
	Time     float64 `json:"-"`
	Position float64 `json:"position"`
	Measure  float64 `json:"measure"`
}

func (b Beat) Downbeat() bool {
	return int(b.Position) == 1
}

func (a *Annotation) Beats() ([]Beat, error) {
	out := make([]Beat, len(a.Data))
	for i, o := range a.Data {
		var b Beat
		if err := json.Unmarshal(o.Value, &b); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidAnnotation, a.Namespace, i, err)
		}
		b.Time = o.Time
		out[i] = b
	}
	return out, nil
}
