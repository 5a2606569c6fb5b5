// Package engine provides the media engine boundary: every decode, filter,
// and mux operation the pipeline needs, backed by the ffmpeg CLI.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/avalign/avalign-api/internal/silence"
)

// Static errors identifying the failing stage. Tool errors wrap one of
// these, so callers can classify failures with errors.Is.
var (
	// ErrProbe is returned when a file's duration cannot be read.
	ErrProbe = errors.New("probe duration failed")
	// ErrAnalysis is returned when silence detection fails.
	ErrAnalysis = errors.New("silence analysis failed")
	// ErrSegment is returned when a trim, generate, concat, or loop
	// operation fails.
	ErrSegment = errors.New("segment operation failed")
	// ErrMux is returned when the final mux fails.
	ErrMux = errors.New("mux failed")
	// ErrNoInputPaths is returned when Concatenate is called without inputs.
	ErrNoInputPaths = errors.New("no input paths provided")
	// ErrInvalidDuration is returned when a duration argument is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidLoopCount is returned when a loop count is below one.
	ErrInvalidLoopCount = errors.New("invalid loop count: must be at least 1")
)

// Engine is the set of media operations the alignment pipeline depends on.
// Implementations may shell out to an external tool or link a media library;
// the pipeline only sees paths, durations, and silence events.
type Engine interface {
	// ProbeDuration returns the duration in seconds of a media file.
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// DetectSilence scans an audio file and returns the ordered silence
	// boundary events found below threshDB lasting at least minSilenceSec.
	DetectSilence(ctx context.Context, path string, threshDB float64, minSilenceSec float64) ([]silence.Event, error)

	// GenerateSilence writes a silent audio file of the given duration
	// to outPath, at the engine's fixed sample rate and channel layout.
	GenerateSilence(ctx context.Context, durationSec float64, outPath string) error

	// ExtractSegment writes a trimmed copy of the input starting at
	// startSec and lasting durationSec to outPath.
	ExtractSegment(ctx context.Context, path string, startSec, durationSec float64, outPath string) error

	// Concatenate joins the given audio files, in order, into outPath.
	Concatenate(ctx context.Context, paths []string, outPath string) error

	// LoopAndTrim plays the video loopCount times and trims the result
	// to trimToSec, writing it to outPath.
	LoopAndTrim(ctx context.Context, path string, loopCount int, trimToSec float64, outPath string) error

	// Mux combines a video track and an audio track into outPath. The
	// video stream is copied unmodified; the audio is re-encoded to the
	// engine's target codec.
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
}

// ToolError is an error from running the external media tool, carrying the
// invocation arguments and captured stderr for diagnosis.
type ToolError struct {
	// Stage is the engine sentinel for the failing operation.
	Stage error
	// Args are the arguments the tool was invoked with.
	Args []string
	// Stderr is the tool's captured diagnostic output.
	Stderr string
	// Err is the underlying execution error.
	Err error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%v: %v\nargs: %v\nstderr: %s", e.Stage, e.Err, e.Args, e.Stderr)
}

// Unwrap lets errors.Is match both the stage sentinel and the exec error.
func (e *ToolError) Unwrap() []error {
	return []error{e.Stage, e.Err}
}
