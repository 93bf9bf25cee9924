package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cwbudde/notetrack/analysis"
	"github.com/cwbudde/notetrack/internal/audioio"
	"github.com/cwbudde/notetrack/jams"
	"github.com/cwbudde/notetrack/pyin"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
	exitInvalidAudio
	exitAnalyzer
	exitInvalidAnnotation
)

// errUsage marks bad arguments or flags.
var errUsage = errors.New("usage")

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "notetrack: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, audioio.ErrInvalidAudio),
		errors.Is(err, analysis.ErrEmptySegment),
		errors.Is(err, analysis.ErrInvalidSampleRate):
		return exitInvalidAudio
	case errors.Is(err, analysis.ErrAnalyzer),
		errors.Is(err, pyin.ErrEmptyInput),
		errors.Is(err, pyin.ErrInvalidParams):
		return exitAnalyzer
	case errors.Is(err, jams.ErrInvalidAnnotation),
		errors.Is(err, analysis.ErrUnsortedOnsets):
		return exitInvalidAnnotation
	default:
		return exitFailure
	}
}
