package heuristic

import "github.com/brensch/tty2048/game"

// Strategy is an advisory label for the next few moves.
type Strategy string

const (
	StrategyCritical   Strategy = "critical"
	StrategyReposition Strategy = "reposition"
	StrategyOrganize   Strategy = "organize"
	StrategyStuck      Strategy = "stuck"
	StrategyContinue   Strategy = "continue"
)

var strategyDescriptions = map[Strategy]string{
	StrategyCritical:   "CRITICAL: Focus on creating merges",
	StrategyReposition: "REPOSITION: Move max tile to corner",
	StrategyOrganize:   "ORGANIZE: Improve tile ordering",
	StrategyStuck:      "STUCK: Try different directions",
	StrategyContinue:   "CONTINUE: Keep down-right strategy",
}

// Description returns the human-readable advice for s.
func (s Strategy) Description() string {
	if d, ok := strategyDescriptions[s]; ok {
		return d
	}
	return string(s)
}

// SuggestStrategy maps b's metrics to a label. Checks run in a fixed order:
// space, corner, ordering, merges.
func SuggestStrategy(b game.Board) Strategy {
	return Complexity(b).Strategy()
}

// Strategy applies the SuggestStrategy thresholds to precomputed metrics.
func (s ComplexityScore) Strategy() Strategy {
	switch {
	case s.EmptyCells <= 2:
		return StrategyCritical
	case !s.MaxInCorner:
		return StrategyReposition
	case s.Monotonicity < 0.5:
		return StrategyOrganize
	case s.MergeOpportunities == 0:
		return StrategyStuck
	default:
		return StrategyContinue
	}
}
