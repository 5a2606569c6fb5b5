// Package align decides how to equalize the durations of a video track and
// an audio track before muxing: loop the video, pad the audio with silence,
// or leave both alone.
package align

import (
	"math"

	"github.com/avalign/avalign-api/internal/silence"
)

// Mode is the chosen alignment action.
type Mode string

const (
	// ModeNoChange means the durations already match within epsilon.
	ModeNoChange Mode = "no_change"
	// ModeLoopVideo means the video is looped and trimmed to the audio duration.
	ModeLoopVideo Mode = "loop_video"
	// ModePadAudio means silence is inserted into the audio track.
	ModePadAudio Mode = "pad_audio"
)

// Strategy selects how silence is distributed when padding audio.
type Strategy string

const (
	// StrategySimple appends a single silence block at the end of the track.
	StrategySimple Strategy = "simple"
	// StrategyChunked spreads the deficit across the gaps after each
	// non-silent segment.
	StrategyChunked Strategy = "chunked"
)

// IsValid reports whether s is a known strategy.
func (s Strategy) IsValid() bool {
	return s == StrategySimple || s == StrategyChunked
}

// Options tunes the alignment decision.
type Options struct {
	// Strategy selects simple or chunked padding. Default: chunked.
	Strategy Strategy
	// EpsilonSec is the duration difference below which no alignment
	// happens. Default: 0.1.
	EpsilonSec float64
	// MaxGapSilenceSec caps any single inserted silence block. A larger
	// deficit is left uncompensated rather than producing one long
	// artificial pause. Default: 5.
	MaxGapSilenceSec float64
}

// DefaultOptions returns the default alignment options.
func DefaultOptions() Options {
	return Options{
		Strategy:         StrategyChunked,
		EpsilonSec:       0.1,
		MaxGapSilenceSec: 5,
	}
}

func (o Options) withDefaults() Options {
	if !o.Strategy.IsValid() {
		o.Strategy = StrategyChunked
	}
	if o.EpsilonSec <= 0 {
		o.EpsilonSec = 0.1
	}
	if o.MaxGapSilenceSec <= 0 {
		o.MaxGapSilenceSec = 5
	}
	return o
}

// Plan is the decision artifact consumed by the pipeline. Exactly one mode
// is set; the remaining fields parametrize it.
type Plan struct {
	// Mode is the chosen action.
	Mode Mode
	// Strategy is the padding strategy the plan was computed for.
	Strategy Strategy
	// LoopCount is how many times the video plays, including the first
	// (loop_video only).
	LoopCount int
	// TrimToSec is the duration the looped video is trimmed to
	// (loop_video only).
	TrimToSec float64
	// SilencePerGapSec is the silence inserted after each segment
	// (pad_audio, chunked only).
	SilencePerGapSec float64
	// TrailingSilenceSec is the single block appended at the end
	// (pad_audio, simple or the zero-gap fallback).
	TrailingSilenceSec float64
	// UncompensatedSec is the part of the deficit the silence cap leaves
	// unfilled. The output can be shorter than the video by this much.
	UncompensatedSec float64
}

// Decide computes the alignment plan for the given track durations.
// The analysis must come from the audio track being padded.
func Decide(videoDur, audioDur float64, analysis silence.Analysis, opts Options) Plan {
	opts = opts.withDefaults()

	diff := videoDur - audioDur
	if math.Abs(diff) <= opts.EpsilonSec {
		return Plan{Mode: ModeNoChange, Strategy: opts.Strategy}
	}

	if audioDur > videoDur {
		count := int(math.Ceil(audioDur / videoDur))
		return Plan{
			Mode:      ModeLoopVideo,
			Strategy:  opts.Strategy,
			LoopCount: count,
			TrimToSec: audioDur,
		}
	}

	return padPlan(diff, audioDur, analysis, opts)
}

func padPlan(deficit, audioDur float64, analysis silence.Analysis, opts Options) Plan {
	plan := Plan{Mode: ModePadAudio, Strategy: opts.Strategy}

	gapCount := len(analysis.Segments)
	if opts.Strategy == StrategyChunked && gapCount > 0 {
		// Deficit measured against actual audio content, so silence
		// already present does not get doubled up.
		contentDeficit := deficit + (audioDur - analysis.ContentSec())
		perGap := contentDeficit / float64(gapCount)
		if perGap > opts.MaxGapSilenceSec {
			plan.UncompensatedSec = (perGap - opts.MaxGapSilenceSec) * float64(gapCount)
			perGap = opts.MaxGapSilenceSec
		}
		plan.SilencePerGapSec = perGap
		return plan
	}

	// Simple strategy, and the fallback when no segments exist to
	// distribute silence across. Silence already present in the track
	// counts against the block, which is then capped like any other
	// insert.
	block := deficit + audioDur - analysis.TotalSilenceSec
	if block < 0 {
		block = 0
	}
	if block > opts.MaxGapSilenceSec {
		block = opts.MaxGapSilenceSec
	}
	plan.TrailingSilenceSec = block
	plan.UncompensatedSec = deficit - block
	if plan.UncompensatedSec < 0 {
		plan.UncompensatedSec = 0
	}
	return plan
}
