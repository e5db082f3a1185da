// Package group manages process sub-groups and point migration between them.
//
// Sub-groups are not tree nodes: an Arena holds one flat slice of world ranks
// and every sub-group is a contiguous span of it, keyed by its recursion path
// ("" for the root, then "0" for the low side and "1" for the high side at each
// level). Splitting a span replaces it with two child spans and never changes
// the parent.
package group

import (
	"fmt"
	"slices"
)

// Span is one sub-group: the ranks in [Lo, Hi) of the arena.
type Span struct {
	Path  string
	Level int
	Lo    int
	Hi    int
}

// Size returns the number of processes in the span.
func (s Span) Size() int { return s.Hi - s.Lo }

// Terminal reports whether the span holds a single process.
func (s Span) Terminal() bool { return s.Size() == 1 }

// Arena tracks every sub-group created during one partitioning run.
//
// An Arena is owned by one process and is not safe for concurrent use.
type Arena struct {
	ranks []int
	spans map[string]Span
}

// NewArena creates an arena whose root span holds ranks 0..size-1.
func NewArena(size int) *Arena {
	ranks := make([]int, size)
	for i := range ranks {
		ranks[i] = i
	}

	a := &Arena{ranks: ranks, spans: make(map[string]Span)}
	a.spans[""] = Span{Path: "", Level: 0, Lo: 0, Hi: size}

	return a
}

// Root returns the span of all processes.
func (a *Arena) Root() Span {
	return a.spans[""]
}

// Members returns the world ranks of s in group order.
func (a *Arena) Members(s Span) []int {
	return slices.Clone(a.ranks[s.Lo:s.Hi])
}

// Split divides s into a low and a high child span.
//
// The lowest-ranked members go to the low child; sizes follow SplitCounts.
//
// Returns:
//   - low: Child span with path s.Path+"0"
//   - high: Child span with path s.Path+"1"
//   - error: If s is terminal or unknown to the arena
func (a *Arena) Split(s Span) (low, high Span, err error) {
	if got, ok := a.spans[s.Path]; !ok || got != s {
		return Span{}, Span{}, fmt.Errorf("span %q is not part of this arena", s.Path)
	}
	if s.Size() < 2 {
		return Span{}, Span{}, fmt.Errorf("span %q has %d process(es) and cannot be split", s.Path, s.Size())
	}

	nLow, _ := SplitCounts(s.Size())
	low = Span{Path: s.Path + "0", Level: s.Level + 1, Lo: s.Lo, Hi: s.Lo + nLow}
	high = Span{Path: s.Path + "1", Level: s.Level + 1, Lo: s.Lo + nLow, Hi: s.Hi}
	a.spans[low.Path] = low
	a.spans[high.Path] = high

	return low, high, nil
}

// Child returns the child of s (after Split) that contains rank.
func (a *Arena) Child(s Span, rank int) (Span, bool) {
	for _, path := range []string{s.Path + "0", s.Path + "1"} {
		c, ok := a.spans[path]
		if ok && slices.Contains(a.ranks[c.Lo:c.Hi], rank) {
			return c, true
		}
	}

	return Span{}, false
}

// SplitCounts returns the process counts of the low and high sides of a group.
//
// Odd sizes give the extra process to the low side.
func SplitCounts(size int) (low, high int) {
	low = (size + 1) / 2
	return low, size - low
}
