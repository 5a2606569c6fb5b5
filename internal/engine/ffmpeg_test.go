package engine

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalign/avalign-api/internal/silence"
)

// checkFFmpeg skips the test if ffmpeg or ffprobe is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

// createToneWAV creates a sine-wave WAV file of the given duration.
func createToneWAV(t *testing.T, path string, durationSec float64) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%.3f", durationSec),
		"-ar", "16000", "-ac", "1",
		path,
	)
	out, _ := cmd.CombinedOutput()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("failed to create test WAV: %s", string(out))
	}
}

// createTestVideo creates a solid-color test video of the given duration.
func createTestVideo(t *testing.T, path string, durationSec float64) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=blue:s=320x240:d=%.3f", durationSec),
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		path,
	)
	out, _ := cmd.CombinedOutput()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("failed to create test video: %s", string(out))
	}
}

func TestFFmpeg_ProbeDuration(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	wav := filepath.Join(tmpDir, "tone.wav")
	createToneWAV(t, wav, 3)

	e := NewFFmpeg("", "")
	dur, err := e.ProbeDuration(t.Context(), wav)

	require.NoError(t, err)
	assert.InDelta(t, 3, dur, 0.1)
}

func TestFFmpeg_ProbeDuration_MissingFile(t *testing.T) {
	checkFFmpeg(t)

	e := NewFFmpeg("", "")
	_, err := e.ProbeDuration(t.Context(), filepath.Join(t.TempDir(), "missing.wav"))

	assert.ErrorIs(t, err, ErrProbe)
}

func TestFFmpeg_GenerateSilenceAndDetect(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	silent := filepath.Join(tmpDir, "silent.wav")

	e := NewFFmpeg("", "")
	require.NoError(t, e.GenerateSilence(t.Context(), 2, silent))

	dur, err := e.ProbeDuration(t.Context(), silent)
	require.NoError(t, err)
	assert.InDelta(t, 2, dur, 0.1)

	events, err := e.DetectSilence(t.Context(), silent, -40, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, silence.EventStart, events[0].Kind)
	assert.InDelta(t, 0, events[0].At, 0.1)
}

func TestFFmpeg_ExtractSegment(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	wav := filepath.Join(tmpDir, "tone.wav")
	createToneWAV(t, wav, 5)

	e := NewFFmpeg("", "")
	out := filepath.Join(tmpDir, "segment.wav")
	require.NoError(t, e.ExtractSegment(t.Context(), wav, 1, 2, out))

	dur, err := e.ProbeDuration(t.Context(), out)
	require.NoError(t, err)
	assert.InDelta(t, 2, dur, 0.2)
}

func TestFFmpeg_Concatenate(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	e := NewFFmpeg("", "")

	a := filepath.Join(tmpDir, "a.wav")
	b := filepath.Join(tmpDir, "b.wav")
	createToneWAV(t, a, 2)
	require.NoError(t, e.GenerateSilence(t.Context(), 1, b))

	out := filepath.Join(tmpDir, "joined.wav")
	require.NoError(t, e.Concatenate(t.Context(), []string{a, b}, out))

	dur, err := e.ProbeDuration(t.Context(), out)
	require.NoError(t, err)
	assert.InDelta(t, 3, dur, 0.2)
}

func TestFFmpeg_LoopAndTrim(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	video := filepath.Join(tmpDir, "clip.mp4")
	createTestVideo(t, video, 2)

	e := NewFFmpeg("", "")
	out := filepath.Join(tmpDir, "looped.mp4")
	require.NoError(t, e.LoopAndTrim(t.Context(), video, 3, 5, out))

	dur, err := e.ProbeDuration(t.Context(), out)
	require.NoError(t, err)
	assert.InDelta(t, 5, dur, 0.2)
}

func TestFFmpeg_Mux(t *testing.T) {
	checkFFmpeg(t)

	tmpDir := t.TempDir()
	video := filepath.Join(tmpDir, "clip.mp4")
	wav := filepath.Join(tmpDir, "tone.wav")
	createTestVideo(t, video, 3)
	createToneWAV(t, wav, 3)

	e := NewFFmpeg("", "")
	out := filepath.Join(tmpDir, "muxed.mp4")
	require.NoError(t, e.Mux(t.Context(), video, wav, out))

	dur, err := e.ProbeDuration(t.Context(), out)
	require.NoError(t, err)
	assert.InDelta(t, 3, dur, 0.2)
}
