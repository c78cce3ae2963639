package booking

import (
	"sort"
	"time"
)

// Window is a half-open interval [Start, End) in UTC. Half-open semantics
// mean back-to-back windows never overlap.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window, rejecting zero or negative durations.
func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether the two windows share any instant.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether inner lies entirely inside w.
func (w Window) Contains(inner Window) bool {
	return !inner.Start.Before(w.Start) && !inner.End.After(w.End)
}

// Expand widens the window by the given buffers. Used to apply trainer dead
// time around a requested slot before conflict checks; never persisted.
func (w Window) Expand(before, after time.Duration) Window {
	return Window{Start: w.Start.Add(-before), End: w.End.Add(after)}
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// mergeWindows unions overlapping or touching windows. Input order does not
// matter; output is sorted by start.
func mergeWindows(ws []Window) []Window {
	if len(ws) < 2 {
		return ws
	}
	sorted := make([]Window, len(ws))
	copy(sorted, ws)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// subtractWindows removes every block from w, returning the zero or more
// fragments left over. A block containing w removes it entirely; partial
// overlap truncates or splits.
func subtractWindows(w Window, blocks []Window) []Window {
	remaining := []Window{w}
	for _, b := range blocks {
		var next []Window
		for _, r := range remaining {
			if !r.Overlaps(b) {
				next = append(next, r)
				continue
			}
			if b.Start.After(r.Start) {
				next = append(next, Window{Start: r.Start, End: b.Start})
			}
			if b.End.Before(r.End) {
				next = append(next, Window{Start: b.End, End: r.End})
			}
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}
	}
	return remaining
}
