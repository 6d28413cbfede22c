package slots

import (
	"sort"

	"salonbook/internal/models"
)

// Grid is the slot layout of one working window.
type Grid struct {
	Open  models.Clock
	Close models.Clock
	Width int // minutes
}

// NewGrid builds a grid, falling back to the default width for non-positive values.
func NewGrid(open, close models.Clock, width int) Grid {
	if width <= 0 {
		width = models.DefaultSlotMinutes
	}
	return Grid{Open: open, Close: close, Width: width}
}

// Generate returns slot starts in [open, close) spaced width minutes apart.
func Generate(open, close models.Clock, width int) []models.Clock {
	return NewGrid(open, close, width).Slots()
}

// Slots returns the ordered slot starts of the grid.
func (g Grid) Slots() []models.Clock {
	if g.Width <= 0 || !g.Open.Before(g.Close) {
		return []models.Clock{}
	}

	out := make([]models.Clock, 0, (g.Close.Minutes()-g.Open.Minutes())/g.Width+1)
	for m := g.Open.Minutes(); m < g.Close.Minutes(); m += g.Width {
		out = append(out, models.ClockFromMinutes(m))
	}
	return out
}

// SlotOf floors t to the start of the slot containing it. Slots are offsets
// from the opening time, so for an opening on the hour this is the minute
// floored to a multiple of the width with the hour kept.
func (g Grid) SlotOf(t models.Clock) models.Clock {
	width := g.Width
	if width <= 0 {
		width = models.DefaultSlotMinutes
	}
	offset := t.Minutes() - g.Open.Minutes()
	steps := offset / width
	if offset < 0 && offset%width != 0 {
		steps--
	}
	return models.ClockFromMinutes(g.Open.Minutes() + steps*width)
}

// Contains reports whether t is exactly one of the grid's slot starts.
func (g Grid) Contains(t models.Clock) bool {
	if t.Before(g.Open) || !t.Before(g.Close) {
		return false
	}
	return g.SlotOf(t) == t
}

// SlotOf floors t within a grid anchored at midnight.
func SlotOf(t models.Clock, width int) models.Clock {
	return Grid{Width: width}.SlotOf(t)
}

// Set is a set of slot starts.
type Set map[models.Clock]struct{}

func NewSet(items ...models.Clock) Set {
	s := make(Set, len(items))
	for _, c := range items {
		s.Add(c)
	}
	return s
}

func (s Set) Add(c models.Clock) {
	s[c] = struct{}{}
}

func (s Set) Has(c models.Clock) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []models.Clock {
	out := make([]models.Clock, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
