// Package pipeline orchestrates a single alignment run: probe both tracks,
// decide looping vs padding, materialize the intermediate files through the
// media engine, and mux the result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avalign/avalign-api/internal/align"
	"github.com/avalign/avalign-api/internal/engine"
	"github.com/avalign/avalign-api/internal/silence"
	"github.com/avalign/avalign-api/internal/workspace"
)

// Aligner runs the duration-alignment pipeline. All media work goes through
// the injected engine; the aligner itself only sequences calls and manages
// the per-run workspace.
type Aligner struct {
	engine engine.Engine
	logger *slog.Logger

	tempRoot              string
	silenceThreshDB       float64
	minSilenceSec         float64
	alignOpts             align.Options
	maxConcurrentSegments int
	runTimeout            time.Duration
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithTempRoot sets the directory run workspaces are created under.
func WithTempRoot(root string) Option {
	return func(a *Aligner) { a.tempRoot = root }
}

// WithSilenceDetection sets the silence threshold in dBFS and the minimum
// silence duration in seconds.
func WithSilenceDetection(threshDB, minSilenceSec float64) Option {
	return func(a *Aligner) {
		a.silenceThreshDB = threshDB
		a.minSilenceSec = minSilenceSec
	}
}

// WithAlignOptions sets the alignment decision options.
func WithAlignOptions(opts align.Options) Option {
	return func(a *Aligner) { a.alignOpts = opts }
}

// WithMaxConcurrentSegments limits how many per-segment engine calls run in
// parallel during chunked padding.
func WithMaxConcurrentSegments(n int) Option {
	return func(a *Aligner) {
		if n > 0 {
			a.maxConcurrentSegments = n
		}
	}
}

// WithRunTimeout bounds a whole run. Zero means no timeout.
func WithRunTimeout(d time.Duration) Option {
	return func(a *Aligner) { a.runTimeout = d }
}

// NewAligner creates an Aligner backed by the given engine.
func NewAligner(eng engine.Engine, logger *slog.Logger, opts ...Option) *Aligner {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aligner{
		engine:                eng,
		logger:                logger,
		silenceThreshDB:       -40,
		minSilenceSec:         0.5,
		alignOpts:             align.DefaultOptions(),
		maxConcurrentSegments: 3,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result describes a completed run.
type Result struct {
	// OutputPath is the final muxed file, written outside the workspace.
	OutputPath string
	// Plan is the alignment decision that was executed.
	Plan align.Plan
	// VideoDurationSec and AudioDurationSec are the probed input durations.
	VideoDurationSec float64
	AudioDurationSec float64
}

// Run aligns the audio and video tracks and muxes them into outputPath.
// The strategy overrides the configured padding strategy when valid. All
// intermediate files live in a per-run workspace that is removed before Run
// returns, success or failure.
func (a *Aligner) Run(ctx context.Context, videoPath, audioPath, outputPath string, strategy align.Strategy) (Result, error) {
	if a.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.runTimeout)
		defer cancel()
	}

	ws, err := workspace.New(a.tempRoot)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			a.logger.Error("workspace cleanup failed",
				slog.String("dir", ws.Dir()),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	videoDur, err := a.engine.ProbeDuration(ctx, videoPath)
	if err != nil {
		return Result{}, fmt.Errorf("probe video: %w", err)
	}
	audioDur, err := a.engine.ProbeDuration(ctx, audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("probe audio: %w", err)
	}

	opts := a.alignOpts
	if strategy.IsValid() {
		opts.Strategy = strategy
	}

	// Silence analysis is only needed when the audio will be padded.
	var analysis silence.Analysis
	if videoDur-audioDur > opts.EpsilonSec {
		events, err := a.engine.DetectSilence(ctx, audioPath, a.silenceThreshDB, a.minSilenceSec)
		if err != nil {
			return Result{}, fmt.Errorf("detect silence: %w", err)
		}
		analysis = silence.Analyze(events, audioDur)
	}

	plan := align.Decide(videoDur, audioDur, analysis, opts)

	a.logger.Info("alignment decided",
		slog.String("mode", string(plan.Mode)),
		slog.String("strategy", string(plan.Strategy)),
		slog.Float64("video_duration", videoDur),
		slog.Float64("audio_duration", audioDur),
		slog.Int("segments", len(analysis.Segments)),
	)
	if plan.UncompensatedSec > 0 {
		a.logger.Warn("silence cap leaves duration deficit uncompensated",
			slog.Float64("uncompensated_sec", plan.UncompensatedSec),
		)
	}

	finalVideo, finalAudio := videoPath, audioPath

	switch plan.Mode {
	case align.ModeLoopVideo:
		looped := ws.Path("looped.mp4")
		if err := a.engine.LoopAndTrim(ctx, videoPath, plan.LoopCount, plan.TrimToSec, looped); err != nil {
			return Result{}, fmt.Errorf("loop video: %w", err)
		}
		finalVideo = looped
	case align.ModePadAudio:
		padded, err := a.padAudio(ctx, ws, audioPath, analysis, plan)
		if err != nil {
			return Result{}, fmt.Errorf("pad audio: %w", err)
		}
		finalAudio = padded
	case align.ModeNoChange:
		// Durations already match; mux the originals as-is.
	}

	if err := a.engine.Mux(ctx, finalVideo, finalAudio, outputPath); err != nil {
		return Result{}, fmt.Errorf("mux: %w", err)
	}

	return Result{
		OutputPath:       outputPath,
		Plan:             plan,
		VideoDurationSec: videoDur,
		AudioDurationSec: audioDur,
	}, nil
}

// padAudio materializes the padding plan: either one trailing silence block
// appended to the original track, or per-segment extraction with a silence
// clip after each segment.
func (a *Aligner) padAudio(ctx context.Context, ws *workspace.Workspace, audioPath string, analysis silence.Analysis, plan align.Plan) (string, error) {
	if plan.SilencePerGapSec > 0 && len(analysis.Segments) > 0 {
		return a.padChunked(ctx, ws, audioPath, analysis.Segments, plan.SilencePerGapSec)
	}

	if plan.TrailingSilenceSec <= 0 {
		// Nothing to insert; the deficit is entirely uncompensated.
		return audioPath, nil
	}

	block := ws.Path("trailing_silence.wav")
	if err := a.engine.GenerateSilence(ctx, plan.TrailingSilenceSec, block); err != nil {
		return "", err
	}

	padded := ws.Path("padded.wav")
	if err := a.engine.Concatenate(ctx, []string{audioPath, block}, padded); err != nil {
		return "", err
	}
	return padded, nil
}

// padChunked extracts every non-silent segment and generates its matching
// silence clip concurrently, then concatenates everything in original
// segment order. Each task writes a distinct pre-assigned file name, so the
// shared workspace needs no locking. A failing task does not cancel its
// siblings; the join waits for all of them and reports the first failure in
// segment order.
func (a *Aligner) padChunked(ctx context.Context, ws *workspace.Workspace, audioPath string, segments []silence.Segment, silencePerGap float64) (string, error) {
	sem := make(chan struct{}, a.maxConcurrentSegments)
	errs := make([]error, len(segments))
	var wg sync.WaitGroup

	for i, seg := range segments {
		wg.Add(1)
		go func(i int, seg silence.Segment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := a.engine.ExtractSegment(ctx, audioPath, seg.Start, seg.Duration(), ws.Path(segmentName(i))); err != nil {
				errs[i] = fmt.Errorf("segment %d: %w", i, err)
				return
			}
			if err := a.engine.GenerateSilence(ctx, silencePerGap, ws.Path(silenceName(i))); err != nil {
				errs[i] = fmt.Errorf("silence %d: %w", i, err)
			}
		}(i, seg)
	}

	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}

	// Interleave in original order regardless of completion order.
	parts := make([]string, 0, len(segments)*2)
	for i := range segments {
		parts = append(parts, ws.Path(segmentName(i)), ws.Path(silenceName(i)))
	}

	padded := ws.Path("padded.wav")
	if err := a.engine.Concatenate(ctx, parts, padded); err != nil {
		return "", err
	}
	return padded, nil
}

func segmentName(i int) string {
	return fmt.Sprintf("segment_%03d.wav", i)
}

func silenceName(i int) string {
	return fmt.Sprintf("silence_%03d.wav", i)
}
