// Package jams reads JAMS annotation files: the JSON container of typed,
// time-stamped annotation tracks used by the guitar transcription corpus.
package jams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrInvalidAnnotation reports an unreadable file or an annotation whose
// data does not fit its namespace.
var ErrInvalidAnnotation = errors.New("jams: invalid annotation")

// Namespaces the tools read.
const (
	NamespaceOnset        = "onset"
	NamespaceNoteMIDI     = "note_midi"
	NamespacePitchMIDI    = "pitch_midi"
	NamespacePitchContour = "pitch_contour"
	NamespaceBeatPosition = "beat_position"
)

type File struct {
	FileMetadata FileMetadata   `json:"file_metadata"`
	Annotations  []*Annotation  `json:"annotations"`
	Sandbox      map[string]any `json:"sandbox,omitempty"`
}

type FileMetadata struct {
	Title       string         `json:"title"`
	Artist      string         `json:"artist"`
	Release     string         `json:"release"`
	Duration    float64        `json:"duration"`
	JAMSVersion string         `json:"jams_version,omitempty"`
	Identifiers map[string]any `json:"identifiers,omitempty"`
}

type AnnotationMetadata struct {
	DataSource string `json:"data_source"`
	Version    string `json:"version"`
	Corpus     string `json:"corpus"`
}

// Observation is one time-stamped annotation value. Value is kept raw and
// interpreted per namespace.
type Observation struct {
	Time       float64         `json:"time"`
	Duration   float64         `json:"duration"`
	Value      json.RawMessage `json:"value"`
	Confidence *float64        `json:"confidence"`
}

type Annotation struct {
	Namespace          string             `json:"namespace"`
	Data               []Observation      `json:"data"`
	AnnotationMetadata AnnotationMetadata `json:"annotation_metadata"`
	Sandbox            map[string]any     `json:"sandbox,omitempty"`
}

// UnmarshalJSON accepts both the observation-list layout and the older
// columnar layout where data is an object of parallel arrays.
func (a *Annotation) UnmarshalJSON(b []byte) error {
	var raw struct {
		Namespace          string             `json:"namespace"`
		Data               json.RawMessage    `json:"data"`
		AnnotationMetadata AnnotationMetadata `json:"annotation_metadata"`
		Sandbox            map[string]any     `json:"sandbox"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	a.Namespace = raw.Namespace
	a.AnnotationMetadata = raw.AnnotationMetadata
	a.Sandbox = raw.Sandbox
	a.Data = nil

	data := bytes.TrimSpace(raw.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		return json.Unmarshal(data, &a.Data)
	}

	var cols struct {
		Time       []float64         `json:"time"`
		Duration   []float64         `json:"duration"`
		Value      []json.RawMessage `json:"value"`
		Confidence []*float64        `json:"confidence"`
	}
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	n := len(cols.Time)
	if len(cols.Duration) != n || len(cols.Value) != n || (cols.Confidence != nil && len(cols.Confidence) != n) {
		return fmt.Errorf("%w: %s: columnar data lengths differ", ErrInvalidAnnotation, raw.Namespace)
	}
	a.Data = make([]Observation, n)
	for i := range a.Data {
		a.Data[i] = Observation{Time: cols.Time[i], Duration: cols.Duration[i], Value: cols.Value[i]}
		if cols.Confidence != nil {
			a.Data[i].Confidence = cols.Confidence[i]
		}
	}
	return nil
}

// Decode reads one JAMS document from r.
func Decode(r io.Reader) (*File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, ErrInvalidAnnotation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnnotation, err)
	}
	return &f, nil
}

// Load reads the JAMS file at path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnnotation, err)
	}
	defer fh.Close()
	f, err := Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Save writes f as indented JSON.
func (f *File) Save(path string) error {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// Search returns the annotations of the given namespace in file order.
func (f *File) Search(namespace string) []*Annotation {
	var out []*Annotation
	for _, a := range f.Annotations {
		if a != nil && a.Namespace == namespace {
			out = append(out, a)
		}
	}
	return out
}

// NoteAnnotations returns the note_midi annotations, or the pitch_midi ones
// when the file has none.
func (f *File) NoteAnnotations() []*Annotation {
	if annos := f.Search(NamespaceNoteMIDI); len(annos) > 0 {
		return annos
	}
	return f.Search(NamespacePitchMIDI)
}

// Onsets returns the event times of the first onset annotation.
func (f *File) Onsets() ([]float64, error) {
	annos := f.Search(NamespaceOnset)
	if len(annos) == 0 {
		return nil, fmt.Errorf("%w: no %q annotation", ErrInvalidAnnotation, NamespaceOnset)
	}
	return annos[0].EventTimes(), nil
}

// EventTimes returns the observation times.
func (a *Annotation) EventTimes() []float64 {
	out := make([]float64, len(a.Data))
	for i, o := range a.Data {
		out[i] = o.Time
	}
	return out
}
