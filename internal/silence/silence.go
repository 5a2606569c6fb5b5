// Package silence turns silence-boundary events detected in an audio track
// into the set of non-silent segments between them.
package silence

// EventKind distinguishes the two boundary types reported by silence detection.
type EventKind string

const (
	// EventStart marks the beginning of a below-threshold span.
	EventStart EventKind = "start"
	// EventEnd marks the end of a below-threshold span.
	EventEnd EventKind = "end"
)

// Event is a single detected silence boundary.
type Event struct {
	// Kind is whether silence started or ended at this point.
	Kind EventKind
	// At is the position in seconds from the start of the track.
	At float64
}

// Segment is a maximal contiguous span of audio above the silence threshold.
type Segment struct {
	// Start is the segment start in seconds.
	Start float64
	// End is the segment end in seconds.
	End float64
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Analysis is the result of analyzing a track's silence events.
type Analysis struct {
	// Segments are the non-silent spans, in track order.
	Segments []Segment
	// TotalSilenceSec is the summed duration of all paired
	// silence intervals.
	TotalSilenceSec float64
}

// ContentSec returns the summed duration of all non-silent segments.
func (a Analysis) ContentSec() float64 {
	var total float64
	for _, seg := range a.Segments {
		total += seg.Duration()
	}
	return total
}

// Analyze walks an ordered event stream and derives the non-silent segments
// of a track of the given total duration.
//
// A start event closes the segment that began at the previous end event (or
// at time zero). An end event opens the next segment. If the last reference
// point precedes the track end, one trailing segment is emitted up to the
// track duration. An unmatched trailing start leaves the tail as silence:
// no trailing segment is emitted for it.
//
// With no events at all the whole track is one segment. An end event with no
// preceding start is ignored; the detector emits boundaries in pairs, so an
// orphan end carries no usable interval.
func Analyze(events []Event, totalDuration float64) Analysis {
	var out Analysis

	cursor := 0.0    // where the current non-silent segment began
	inSilence := false
	silenceFrom := 0.0

	for _, ev := range events {
		switch ev.Kind {
		case EventStart:
			if inSilence {
				continue
			}
			if ev.At > cursor {
				out.Segments = append(out.Segments, Segment{Start: cursor, End: ev.At})
			}
			inSilence = true
			silenceFrom = ev.At
		case EventEnd:
			if !inSilence {
				continue
			}
			out.TotalSilenceSec += ev.At - silenceFrom
			cursor = ev.At
			inSilence = false
		}
	}

	if inSilence {
		// Trailing silence through the end of the track.
		if totalDuration > silenceFrom {
			out.TotalSilenceSec += totalDuration - silenceFrom
		}
		return out
	}

	if totalDuration > cursor {
		out.Segments = append(out.Segments, Segment{Start: cursor, End: totalDuration})
	}

	return out
}
