package domain

import "time"

// WeekLength is the default reporting period.
const WeekLength = 7 * 24 * time.Hour

// DigestWindow is the half-open reporting interval [Start, End).
type DigestWindow struct {
	Start time.Time
	End   time.Time
}

// WeekEnding builds the seven-day window that ends at end.
func WeekEnding(end time.Time) DigestWindow {
	return DigestWindow{Start: end.Add(-WeekLength), End: end}
}

// Contains reports whether t falls inside the window.
func (w DigestWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// LastDay returns the final instant covered by the window.
func (w DigestWindow) LastDay() time.Time {
	return w.End.Add(-time.Nanosecond)
}

// Section holds the items of one category, most recent first.
type Section struct {
	Category Category
	Items    []RawItem
}

// Digest is the rendered artifact for one window.
type Digest struct {
	Window       DigestWindow
	Sections     []Section
	RenderedText string
	GeneratedAt  time.Time
}

// ItemCount returns the number of items across all sections.
func (d Digest) ItemCount() int {
	total := 0
	for _, s := range d.Sections {
		total += len(s.Items)
	}
	return total
}
