package heuristic

import (
	"math"

	"github.com/brensch/tty2048/game"
)

// ScatterTileThreshold is the smallest tile counted by the scatter metric.
const ScatterTileThreshold = 64

// DefaultInspectionThreshold is the complexity at or above which a board is
// flagged for manual inspection.
const DefaultInspectionThreshold = 70.0

// ComplexityScore is a read-only summary of how hard a board is to play.
type ComplexityScore struct {
	EmptyCells         int        `json:"empty_cells"`
	MaxTile            int        `json:"max_tile"`
	MaxTilePos         game.Point `json:"max_tile_pos"`
	MaxInCorner        bool       `json:"max_in_corner"`
	Monotonicity       float64    `json:"monotonicity"`
	MergeOpportunities int        `json:"merge_opportunities"`
	Scatter            float64    `json:"scattered_score"`

	EmptyFactor        float64 `json:"empty_factor"`
	CornerFactor       float64 `json:"corner_factor"`
	MonotonicityFactor float64 `json:"monotonicity_factor"`
	MergeFactor        float64 `json:"merge_factor"`
	ScatterFactor      float64 `json:"scattered_factor"`

	// Complexity is the weighted composite in [0, 100]; higher is harder.
	Complexity float64 `json:"complexity"`
}

// Complexity computes the metrics for b.
func Complexity(b game.Board) ComplexityScore {
	s := ComplexityScore{
		EmptyCells:         b.EmptyCount(),
		Monotonicity:       float64(monotonicLines(b)) / float64(2*game.Size),
		MergeOpportunities: mergeOpportunities(b),
		Scatter:            meanScatter(b),
	}

	s.MaxTile, s.MaxTilePos = b.MaxTile()
	for _, p := range game.Corners {
		if s.MaxTile > 0 && b[p.Row][p.Col] == s.MaxTile {
			s.MaxInCorner = true
			s.MaxTilePos = p
			break
		}
	}

	s.EmptyFactor = math.Max(0, 1-float64(s.EmptyCells)/4)
	if !s.MaxInCorner {
		s.CornerFactor = 0.5
	}
	s.MonotonicityFactor = 1 - s.Monotonicity
	s.MergeFactor = math.Max(0, 1-float64(s.MergeOpportunities)/4)
	s.ScatterFactor = math.Min(1, s.Scatter/6)

	s.Complexity = s.EmptyFactor*30 +
		s.CornerFactor*20 +
		s.MonotonicityFactor*20 +
		s.MergeFactor*20 +
		s.ScatterFactor*10
	return s
}

// NeedsInspection reports whether b's complexity reaches threshold.
func NeedsInspection(b game.Board, threshold float64) bool {
	return Complexity(b).Complexity >= threshold
}

// meanScatter is the mean pairwise Manhattan distance between tiles >= 64.
func meanScatter(b game.Board) float64 {
	pts := tilesAtLeast(b, ScatterTileThreshold)
	if len(pts) <= 1 {
		return 0
	}
	pairs := len(pts) * (len(pts) - 1) / 2
	return float64(pairwiseDistance(b, ScatterTileThreshold)) / float64(pairs)
}
