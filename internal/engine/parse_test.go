package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalign/avalign-api/internal/silence"
)

const sampleSilenceOutput = `Input #0, wav, from 'input.wav':
  Duration: 00:00:10.00, bitrate: 256 kb/s
  Stream #0:0: Audio: pcm_s16le, 16000 Hz, mono, s16, 256 kb/s
[silencedetect @ 0x5590] silence_start: 2
[silencedetect @ 0x5590] silence_end: 4 | silence_duration: 2
[silencedetect @ 0x5590] silence_start: 9
[silencedetect @ 0x5590] silence_end: 9.5 | silence_duration: 0.5
size=N/A time=00:00:10.00 bitrate=N/A speed= 500x
`

func TestParseSilenceEvents(t *testing.T) {
	events := parseSilenceEvents(sampleSilenceOutput)

	require.Len(t, events, 4)
	assert.Equal(t, silence.Event{Kind: silence.EventStart, At: 2}, events[0])
	assert.Equal(t, silence.Event{Kind: silence.EventEnd, At: 4}, events[1])
	assert.Equal(t, silence.Event{Kind: silence.EventStart, At: 9}, events[2])
	assert.Equal(t, silence.Event{Kind: silence.EventEnd, At: 9.5}, events[3])
}

func TestParseSilenceEvents_NoMatches(t *testing.T) {
	events := parseSilenceEvents("frame=  250 fps=0.0 q=-1.0 size=N/A\n")
	assert.Empty(t, events)
}

func TestParseSilenceEvents_UnmatchedTrailingStart(t *testing.T) {
	output := `[silencedetect @ 0x1] silence_start: 3.25
[silencedetect @ 0x1] silence_end: 5 | silence_duration: 1.75
[silencedetect @ 0x1] silence_start: 8.5
`
	events := parseSilenceEvents(output)

	require.Len(t, events, 3)
	assert.Equal(t, silence.EventStart, events[2].Kind)
	assert.InDelta(t, 8.5, events[2].At, 1e-9)
}

func TestParseSilenceEvents_NegativeStartClampedToZero(t *testing.T) {
	// silencedetect can report a small negative start for silence at the
	// very beginning of a track.
	output := "[silencedetect @ 0x1] silence_start: -0.01\n[silencedetect @ 0x1] silence_end: 1.5 | silence_duration: 1.51\n"

	events := parseSilenceEvents(output)

	require.Len(t, events, 2)
	assert.Zero(t, events[0].At)
}

func TestToolError_UnwrapsStage(t *testing.T) {
	execErr := errors.New("exit status 1")
	err := &ToolError{Stage: ErrMux, Args: []string{"-i", "a.mp4"}, Stderr: "boom", Err: execErr}

	assert.ErrorIs(t, err, ErrMux)
	assert.ErrorIs(t, err, execErr)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "a.mp4")
}

func TestNewFFmpeg_Defaults(t *testing.T) {
	e := NewFFmpeg("", "")
	assert.Equal(t, "ffmpeg", e.ffmpegPath)
	assert.Equal(t, "ffprobe", e.ffprobePath)

	custom := NewFFmpeg("/opt/ffmpeg", "/opt/ffprobe")
	assert.Equal(t, "/opt/ffmpeg", custom.ffmpegPath)
	assert.Equal(t, "/opt/ffprobe", custom.ffprobePath)
}

func TestFFmpeg_ArgumentValidation(t *testing.T) {
	e := NewFFmpeg("", "")
	ctx := t.Context()

	assert.ErrorIs(t, e.GenerateSilence(ctx, 0, "out.wav"), ErrInvalidDuration)
	assert.ErrorIs(t, e.ExtractSegment(ctx, "in.wav", 0, -1, "out.wav"), ErrInvalidDuration)
	assert.ErrorIs(t, e.Concatenate(ctx, nil, "out.wav"), ErrNoInputPaths)
	assert.ErrorIs(t, e.LoopAndTrim(ctx, "in.mp4", 0, 5, "out.mp4"), ErrInvalidLoopCount)
	assert.ErrorIs(t, e.LoopAndTrim(ctx, "in.mp4", 2, 0, "out.mp4"), ErrInvalidDuration)
}
