package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/avalign/avalign-api/internal/silence"
)

// Audio parameters for generated silence and the mux target codec.
const (
	silenceSampleRate    = 44100
	silenceChannelLayout = "stereo"
	muxAudioCodec        = "aac"
	muxAudioBitrate      = "192k"
)

// FFmpeg implements Engine using the ffmpeg and ffprobe CLIs.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// Compile-time check that FFmpeg implements Engine.
var _ Engine = (*FFmpeg)(nil)

// NewFFmpeg creates a new ffmpeg-backed engine. Empty paths default to
// "ffmpeg" and "ffprobe" found via PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// ProbeDuration returns the duration in seconds of a media file using
// ffprobe's format metadata.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, &ToolError{Stage: ErrProbe, Args: args, Stderr: stderr.String(), Err: err}
	}

	raw := strings.TrimSpace(stdout.String())
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse duration %q: %w", ErrProbe, raw, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: no duration metadata in %s", ErrProbe, path)
	}

	return duration, nil
}

// DetectSilence runs the silencedetect filter and scrapes boundary events
// from ffmpeg's diagnostic output. The textual parsing stays inside this
// adapter; callers only see structured events.
func (f *FFmpeg) DetectSilence(ctx context.Context, path string, threshDB, minSilenceSec float64) ([]silence.Event, error) {
	filter := fmt.Sprintf("silencedetect=noise=%ddB:d=%g", int(threshDB), minSilenceSec)

	args := []string{
		"-hide_banner",
		"-i", path,
		"-af", filter,
		"-f", "null", "-",
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, &ToolError{Stage: ErrAnalysis, Args: args, Stderr: stderr.String(), Err: err}
	}

	return parseSilenceEvents(stderr.String()), nil
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
)

// parseSilenceEvents extracts silence boundary events, in emission order,
// from silencedetect diagnostic text.
func parseSilenceEvents(output string) []silence.Event {
	var events []silence.Event

	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); len(m) > 1 {
			if at, err := strconv.ParseFloat(m[1], 64); err == nil {
				if at < 0 {
					at = 0
				}
				events = append(events, silence.Event{Kind: silence.EventStart, At: at})
			}
		}
		if m := silenceEndRe.FindStringSubmatch(line); len(m) > 1 {
			if at, err := strconv.ParseFloat(m[1], 64); err == nil {
				events = append(events, silence.Event{Kind: silence.EventEnd, At: at})
			}
		}
	}

	return events
}

// GenerateSilence writes a silent audio file of the given duration using
// the anullsrc source.
func (f *FFmpeg) GenerateSilence(ctx context.Context, durationSec float64, outPath string) error {
	if durationSec <= 0 {
		return fmt.Errorf("%w: got %.3f", ErrInvalidDuration, durationSec)
	}

	src := fmt.Sprintf("anullsrc=channel_layout=%s:sample_rate=%d", silenceChannelLayout, silenceSampleRate)
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", src,
		"-t", fmt.Sprintf("%.3f", durationSec),
		outPath,
	}

	return f.runFFmpeg(ctx, ErrSegment, args)
}

// ExtractSegment writes a trimmed stream copy of the input to outPath.
func (f *FFmpeg) ExtractSegment(ctx context.Context, path string, startSec, durationSec float64, outPath string) error {
	if durationSec <= 0 {
		return fmt.Errorf("%w: got %.3f", ErrInvalidDuration, durationSec)
	}

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-i", path,
		"-c", "copy",
		outPath,
	}

	return f.runFFmpeg(ctx, ErrSegment, args)
}

// Concatenate joins audio files in order using the concat demuxer. Inputs
// with differing parameters are normalized by re-encoding to PCM.
func (f *FFmpeg) Concatenate(ctx context.Context, paths []string, outPath string) error {
	if len(paths) == 0 {
		return ErrNoInputPaths
	}

	listFile, err := f.writeConcatList(paths)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSegment, err)
	}
	defer func() { _ = os.Remove(listFile) }()

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:a", "pcm_s16le",
		outPath,
	}

	return f.runFFmpeg(ctx, ErrSegment, args)
}

// writeConcatList creates the temporary file list the concat demuxer reads.
func (f *FFmpeg) writeConcatList(paths []string) (string, error) {
	file, err := os.CreateTemp("", "avalign-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = file.Close() }()

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("absolute path for %s: %w", p, err)
		}
		escaped := strings.ReplaceAll(abs, "'", "'\\''")
		if _, err := fmt.Fprintf(file, "file '%s'\n", escaped); err != nil {
			return "", fmt.Errorf("write concat list: %w", err)
		}
	}

	return file.Name(), nil
}

// LoopAndTrim repeats the video loopCount times and trims the result to
// trimToSec. The video stream is re-encoded because stream_loop with copy
// can produce broken timestamps across loop seams.
func (f *FFmpeg) LoopAndTrim(ctx context.Context, path string, loopCount int, trimToSec float64, outPath string) error {
	if loopCount < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLoopCount, loopCount)
	}
	if trimToSec <= 0 {
		return fmt.Errorf("%w: got %.3f", ErrInvalidDuration, trimToSec)
	}

	args := []string{
		"-y",
		"-stream_loop", strconv.Itoa(loopCount - 1),
		"-i", path,
		"-t", fmt.Sprintf("%.3f", trimToSec),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-an",
		outPath,
	}

	return f.runFFmpeg(ctx, ErrSegment, args)
}

// Mux combines a video and an audio track. Video is copied unmodified;
// audio is re-encoded to the fixed target codec.
func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", muxAudioCodec,
		"-b:a", muxAudioBitrate,
		outPath,
	}

	return f.runFFmpeg(ctx, ErrMux, args)
}

// runFFmpeg executes ffmpeg with the given arguments, wrapping failures in
// a ToolError carrying the captured stderr.
func (f *FFmpeg) runFFmpeg(ctx context.Context, stage error, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &ToolError{Stage: stage, Args: args, Stderr: stderr.String(), Err: err}
	}

	return nil
}
