package ledger

import (
	"cricket-sim/internal/domain"
)

// The fold functions are pure and structurally inverse: for any aggregate a
// and scorecard row x, ReverseBatting(ApplyBatting(a, x), x) == a, except
// for the documented non-invertible fields (highest score, best bowling),
// which reversal never touches.

func ApplyBatting(a domain.PlayerAggregate, row domain.BattingScorecard) domain.PlayerAggregate {
	if row.Balls > 0 || row.Out {
		a.InningsBatted++
	}
	a.Runs += row.Runs
	a.BallsFaced += row.Balls
	a.Fours += row.Fours
	a.Sixes += row.Sixes
	if row.Runs >= 100 {
		a.Hundreds++
	} else if row.Runs >= 50 {
		a.Fifties++
	}
	if !row.Out && row.Balls >= 1 {
		a.NotOuts++
	}
	if row.Runs > a.HighestScore {
		a.HighestScore = row.Runs
	}
	return a
}

func ReverseBatting(a domain.PlayerAggregate, row domain.BattingScorecard) domain.PlayerAggregate {
	if row.Balls > 0 || row.Out {
		a.InningsBatted = clamp(a.InningsBatted - 1)
	}
	a.Runs = clamp(a.Runs - row.Runs)
	a.BallsFaced = clamp(a.BallsFaced - row.Balls)
	a.Fours = clamp(a.Fours - row.Fours)
	a.Sixes = clamp(a.Sixes - row.Sixes)
	if row.Runs >= 100 {
		a.Hundreds = clamp(a.Hundreds - 1)
	} else if row.Runs >= 50 {
		a.Fifties = clamp(a.Fifties - 1)
	}
	if !row.Out && row.Balls >= 1 {
		a.NotOuts = clamp(a.NotOuts - 1)
	}
	// HighestScore may have been set by a different match; it is flagged
	// stale by the caller instead of guessed here.
	return a
}

func ApplyBowling(a domain.PlayerAggregate, row domain.BowlingScorecard) domain.PlayerAggregate {
	// 0/0 with nothing bowled is the unset sentinel; the first real spell
	// always takes the best, wickets or not.
	bestUnset := a.BallsBowled == 0 && a.BestBowlingWickets == 0 && a.BestBowlingRuns == 0

	a.Wickets += row.Wickets
	a.BallsBowled += row.BallsBowled
	a.RunsConceded += row.RunsConceded
	a.Maidens += row.Maidens
	if row.Wickets >= 5 {
		a.FiveWicketHauls++
	}
	if row.BallsBowled > 0 && (bestUnset || betterBowling(row.Wickets, row.RunsConceded, a.BestBowlingWickets, a.BestBowlingRuns)) {
		a.BestBowlingWickets = row.Wickets
		a.BestBowlingRuns = row.RunsConceded
	}
	return a
}

func ReverseBowling(a domain.PlayerAggregate, row domain.BowlingScorecard) domain.PlayerAggregate {
	a.Wickets = clamp(a.Wickets - row.Wickets)
	a.BallsBowled = clamp(a.BallsBowled - row.BallsBowled)
	a.RunsConceded = clamp(a.RunsConceded - row.RunsConceded)
	a.Maidens = clamp(a.Maidens - row.Maidens)
	if row.Wickets >= 5 {
		a.FiveWicketHauls = clamp(a.FiveWicketHauls - 1)
	}
	// Best bowling is non-invertible; flagged stale by the caller.
	return a
}

// betterBowling reports whether figures (w1, r1) beat (w2, r2): more
// wickets, or the same wickets for fewer runs. Callers handle the unset
// sentinel; this is a pure comparison of real figures.
func betterBowling(w1, r1, w2, r2 int) bool {
	if w1 != w2 {
		return w1 > w2
	}
	return r1 < r2
}

// touchesHighest reports whether the row could have set the aggregate's
// highest score, meaning reversal leaves the field untrustworthy.
func touchesHighest(a domain.PlayerAggregate, row domain.BattingScorecard) bool {
	return row.Runs >= a.HighestScore && row.Runs > 0
}

// touchesBest reports whether the row could have set the best bowling
// figures. Wicketless spells count too, since the first spell always sets
// the best.
func touchesBest(a domain.PlayerAggregate, row domain.BowlingScorecard) bool {
	return row.BallsBowled > 0 && row.Wickets == a.BestBowlingWickets && row.RunsConceded == a.BestBowlingRuns
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
