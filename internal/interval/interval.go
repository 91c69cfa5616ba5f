package interval

import (
	"sort"
	"time"
)

// TimeSpan is a half-open interval [Start, End). A span with End not after
// Start is empty.
type TimeSpan struct {
	Start time.Time
	End   time.Time
}

// NewTimeSpan constructs a span from two instants.
func NewTimeSpan(start, end time.Time) TimeSpan {
	return TimeSpan{Start: start, End: end}
}

// IsEmpty reports whether the span contains no instants.
func (s TimeSpan) IsEmpty() bool {
	return !s.End.After(s.Start)
}

// Duration returns the length of the span, zero for empty spans.
func (s TimeSpan) Duration() time.Duration {
	if s.IsEmpty() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Overlaps reports whether the two half-open spans share any instant.
func (s TimeSpan) Overlaps(other TimeSpan) bool {
	if s.IsEmpty() || other.IsEmpty() {
		return false
	}
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// Covers reports whether other lies entirely inside s.
func (s TimeSpan) Covers(other TimeSpan) bool {
	if s.IsEmpty() || other.IsEmpty() {
		return false
	}
	return !other.Start.Before(s.Start) && !other.End.After(s.End)
}

// Intersect returns the overlapping portion of the two spans. The boolean is
// false when they do not overlap.
func (s TimeSpan) Intersect(other TimeSpan) (TimeSpan, bool) {
	if !s.Overlaps(other) {
		return TimeSpan{}, false
	}
	out := s
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

// Subtract removes block from open and returns the remaining pieces in
// chronological order. A block that does not overlap leaves open unchanged; a
// covering block yields nothing; a block strictly inside yields two pieces.
func Subtract(open, block TimeSpan) []TimeSpan {
	if open.IsEmpty() {
		return nil
	}
	if !open.Overlaps(block) {
		return []TimeSpan{open}
	}

	var out []TimeSpan
	if block.Start.After(open.Start) {
		out = append(out, TimeSpan{Start: open.Start, End: block.Start})
	}
	if block.End.Before(open.End) {
		out = append(out, TimeSpan{Start: block.End, End: open.End})
	}
	return out
}

// SubtractAll removes every block from every open span. Blocks may overlap
// each other and the open spans arbitrarily.
func SubtractAll(open []TimeSpan, blocks []TimeSpan) []TimeSpan {
	remaining := make([]TimeSpan, 0, len(open))
	for _, span := range open {
		if !span.IsEmpty() {
			remaining = append(remaining, span)
		}
	}

	for _, block := range blocks {
		if block.IsEmpty() {
			continue
		}
		next := make([]TimeSpan, 0, len(remaining))
		for _, span := range remaining {
			next = append(next, Subtract(span, block)...)
		}
		remaining = next
	}

	return Merge(remaining)
}

// Merge sorts the spans chronologically and coalesces overlapping or abutting
// neighbours into single spans. Empty spans are dropped.
func Merge(spans []TimeSpan) []TimeSpan {
	filtered := make([]TimeSpan, 0, len(spans))
	for _, span := range spans {
		if !span.IsEmpty() {
			filtered = append(filtered, span)
		}
	}
	if len(filtered) <= 1 {
		return filtered
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Start.Equal(filtered[j].Start) {
			return filtered[i].End.Before(filtered[j].End)
		}
		return filtered[i].Start.Before(filtered[j].Start)
	})

	merged := filtered[:1]
	for _, span := range filtered[1:] {
		last := &merged[len(merged)-1]
		if !span.Start.After(last.End) {
			if span.End.After(last.End) {
				last.End = span.End
			}
			continue
		}
		merged = append(merged, span)
	}
	return merged
}

// ClipToTimeOfDay keeps, for every civil day in loc touched by the spans,
// only the portion whose time of day falls inside [from, to). from and to are
// offsets from local midnight; from must be less than to.
func ClipToTimeOfDay(spans []TimeSpan, from, to time.Duration, loc *time.Location) []TimeSpan {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]TimeSpan, 0, len(spans))
	for _, span := range spans {
		if span.IsEmpty() {
			continue
		}
		day := StartOfDay(span.Start, loc)
		for day.Before(span.End) {
			window := TimeSpan{Start: day.Add(from), End: day.Add(to)}
			if clipped, ok := span.Intersect(window); ok {
				out = append(out, clipped)
			}
			day = day.AddDate(0, 0, 1)
		}
	}
	return Merge(out)
}

// StartOfDay returns local midnight of the day containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// AlignForward returns the earliest instant at or after t whose offset from
// local midnight in loc is a whole multiple of step. A non-positive step
// returns t unchanged.
func AlignForward(t time.Time, step time.Duration, loc *time.Location) time.Time {
	if step <= 0 {
		return t
	}
	midnight := StartOfDay(t, loc)
	offset := t.Sub(midnight)
	remainder := offset % step
	if remainder == 0 {
		return t
	}
	return t.Add(step - remainder)
}
