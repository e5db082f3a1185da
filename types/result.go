package types

import (
	"slices"

	"github.com/arloliu/geoparti/internal/hash"
)

// WarningKind classifies a non-fatal quality warning.
type WarningKind string

// WarningToleranceNotAchieved is raised when the median search exhausts its budget
// (or the point distribution) before reaching the requested imbalance tolerance.
const WarningToleranceNotAchieved WarningKind = "tolerance_not_achieved"

// Warning is a non-fatal quality warning attached to one recursion level.
//
// Every process of the group that produced the warning observes an identical copy.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	Level      int         `json:"level"`
	Path       string      `json:"path"`
	Imbalance  float64     `json:"imbalance"`
	Tolerance  float64     `json:"tolerance"`
	Iterations int         `json:"iterations"`
}

// LevelReport summarizes one bisection step as observed by one process.
type LevelReport struct {
	// Level is the recursion depth, starting at 0.
	Level int `json:"level"`

	// Path identifies the group by the sequence of sides taken ("0" low, "1" high).
	Path string `json:"path"`

	// GroupSize is the number of processes in the group being split.
	GroupSize int `json:"groupSize"`

	// LowProcs and HighProcs are the sizes of the two resulting sub-groups.
	LowProcs  int `json:"lowProcs"`
	HighProcs int `json:"highProcs"`

	// Cut is the cut applied at this level.
	Cut Cut `json:"cut"`

	// Sent and Received count points this process migrated at this level.
	Sent     int `json:"sent"`
	Received int `json:"received"`
}

// Export records that a point supplied by this process ended on another process.
type Export struct {
	ID uint64 `json:"id"`
	To int    `json:"to"`
}

// Result is the process-local view of a partition assignment.
type Result struct {
	// Rank of the process that produced this result.
	Rank int `json:"rank"`

	// Size is the number of processes that took part.
	Size int `json:"size"`

	// Points are the points this process holds after partitioning.
	// Every point has Owner == Rank.
	Points []Point `json:"points"`

	// Exports lists points supplied by this process that now live elsewhere.
	Exports []Export `json:"exports"`

	// Levels holds one report per recursion level along this process's path.
	Levels []LevelReport `json:"levels"`

	// Warnings accumulated along this process's path.
	Warnings []Warning `json:"warnings"`
}

// Weight returns the total weight of the points held.
func (r *Result) Weight() float64 {
	total := 0.0
	for _, p := range r.Points {
		total += p.Weight
	}

	return total
}

// IDs returns the sorted identifiers of the points held.
func (r *Result) IDs() []uint64 {
	ids := make([]uint64, len(r.Points))
	for i, p := range r.Points {
		ids[i] = p.ID
	}
	slices.Sort(ids)

	return ids
}

// Imports returns the points held that were supplied by another process.
func (r *Result) Imports() []Point {
	imports := make([]Point, 0)
	for _, p := range r.Points {
		if p.Origin != r.Rank {
			imports = append(imports, p)
		}
	}

	return imports
}

// Owner returns the terminal process of a point this process supplied.
//
// Parameters:
//   - id: Identifier of a point originally passed to Partition on this process
//
// Returns:
//   - int: Rank now holding the point
//   - bool: false if id was not supplied by this process
func (r *Result) Owner(id uint64) (int, bool) {
	for _, p := range r.Points {
		if p.ID == id && p.Origin == r.Rank {
			return r.Rank, true
		}
	}
	for _, e := range r.Exports {
		if e.ID == id {
			return e.To, true
		}
	}

	return 0, false
}

// Assignment maps every identifier supplied by this process to its terminal rank.
func (r *Result) Assignment() map[uint64]int {
	out := make(map[uint64]int, len(r.Points)+len(r.Exports))
	for _, p := range r.Points {
		if p.Origin == r.Rank {
			out[p.ID] = r.Rank
		}
	}
	for _, e := range r.Exports {
		out[e.ID] = e.To
	}

	return out
}

// HasWarnings reports whether any level along this process's path raised a warning.
func (r *Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Fingerprint returns a stable hash of the held identifier set.
//
// Two runs over identical input produce identical fingerprints on every rank.
func (r *Result) Fingerprint() uint64 {
	return hash.IDs(r.IDs())
}
