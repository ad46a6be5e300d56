package ledger

import (
	"testing"

	"cricket-sim/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestApplyBatting(t *testing.T) {
	row := domain.BattingScorecard{Runs: 61, Balls: 40, Fours: 7, Sixes: 2, Out: true}

	a := ApplyBatting(domain.PlayerAggregate{}, row)

	assert.Equal(t, 1, a.InningsBatted)
	assert.Equal(t, 61, a.Runs)
	assert.Equal(t, 40, a.BallsFaced)
	assert.Equal(t, 7, a.Fours)
	assert.Equal(t, 2, a.Sixes)
	assert.Equal(t, 1, a.Fifties)
	assert.Equal(t, 0, a.Hundreds)
	assert.Equal(t, 0, a.NotOuts)
	assert.Equal(t, 61, a.HighestScore)
}

func TestApplyBatting_HundredIsNotAlsoFifty(t *testing.T) {
	a := ApplyBatting(domain.PlayerAggregate{}, domain.BattingScorecard{Runs: 104, Balls: 60, Out: true})
	assert.Equal(t, 1, a.Hundreds)
	assert.Equal(t, 0, a.Fifties)
}

func TestApplyBatting_NotOutNeedsAtLeastOneBall(t *testing.T) {
	a := ApplyBatting(domain.PlayerAggregate{}, domain.BattingScorecard{Runs: 0, Balls: 0})
	assert.Equal(t, 0, a.InningsBatted, "never faced a ball, never batted")
	assert.Equal(t, 0, a.NotOuts)

	b := ApplyBatting(domain.PlayerAggregate{}, domain.BattingScorecard{Runs: 3, Balls: 5})
	assert.Equal(t, 1, b.InningsBatted)
	assert.Equal(t, 1, b.NotOuts)
}

func TestApplyBatting_HighestScoreKeepsMax(t *testing.T) {
	a := domain.PlayerAggregate{HighestScore: 80}
	a = ApplyBatting(a, domain.BattingScorecard{Runs: 30, Balls: 20, Out: true})
	assert.Equal(t, 80, a.HighestScore)
}

func TestReverseBatting_IsInverse(t *testing.T) {
	rows := []domain.BattingScorecard{
		{Runs: 61, Balls: 40, Fours: 7, Sixes: 2, Out: true},
		{Runs: 104, Balls: 70, Fours: 10, Sixes: 4},
		{Runs: 0, Balls: 0},
	}

	for _, row := range rows {
		before := domain.PlayerAggregate{
			InningsBatted: 10, Runs: 400, BallsFaced: 300,
			Fours: 30, Sixes: 9, Fifties: 2, Hundreds: 1, NotOuts: 3,
			HighestScore: 120,
		}
		after := ReverseBatting(ApplyBatting(before, row), row)
		// HighestScore is the one documented non-invertible field.
		assert.Equal(t, before, after)
	}
}

func TestReverseBatting_ClampsAtZero(t *testing.T) {
	a := ReverseBatting(domain.PlayerAggregate{}, domain.BattingScorecard{Runs: 61, Balls: 40, Out: true})

	assert.Equal(t, 0, a.Runs)
	assert.Equal(t, 0, a.BallsFaced)
	assert.Equal(t, 0, a.Fifties)
	assert.Equal(t, 0, a.InningsBatted)
}

func TestReverseBatting_NeverLowersHighestScore(t *testing.T) {
	row := domain.BattingScorecard{Runs: 120, Balls: 70, Out: true}
	a := ApplyBatting(domain.PlayerAggregate{}, row)
	a = ReverseBatting(a, row)
	assert.Equal(t, 120, a.HighestScore, "left for the stale-recompute path")
}

func TestApplyBowling(t *testing.T) {
	row := domain.BowlingScorecard{BallsBowled: 24, RunsConceded: 18, Wickets: 5, Maidens: 1}

	a := ApplyBowling(domain.PlayerAggregate{}, row)

	assert.Equal(t, 5, a.Wickets)
	assert.Equal(t, 24, a.BallsBowled)
	assert.Equal(t, 18, a.RunsConceded)
	assert.Equal(t, 1, a.Maidens)
	assert.Equal(t, 1, a.FiveWicketHauls)
	assert.Equal(t, 5, a.BestBowlingWickets)
	assert.Equal(t, 18, a.BestBowlingRuns)
}

func TestApplyBowling_BestFigures(t *testing.T) {
	a := domain.PlayerAggregate{BestBowlingWickets: 3, BestBowlingRuns: 20}

	// Same wickets for fewer runs is better.
	a = ApplyBowling(a, domain.BowlingScorecard{Wickets: 3, RunsConceded: 15, BallsBowled: 24})
	assert.Equal(t, 3, a.BestBowlingWickets)
	assert.Equal(t, 15, a.BestBowlingRuns)

	// Fewer wickets never improves the best, however cheap.
	a = ApplyBowling(a, domain.BowlingScorecard{Wickets: 2, RunsConceded: 1, BallsBowled: 24})
	assert.Equal(t, 3, a.BestBowlingWickets)
	assert.Equal(t, 15, a.BestBowlingRuns)
}

func TestApplyBowling_FirstSpellSetsBestEvenWicketless(t *testing.T) {
	a := ApplyBowling(domain.PlayerAggregate{}, domain.BowlingScorecard{BallsBowled: 24, RunsConceded: 20})
	assert.Equal(t, 0, a.BestBowlingWickets)
	assert.Equal(t, 20, a.BestBowlingRuns, "real figures displace the unset 0/0")

	// A dearer wicketless spell does not displace it.
	a = ApplyBowling(a, domain.BowlingScorecard{BallsBowled: 12, RunsConceded: 35})
	assert.Equal(t, 20, a.BestBowlingRuns)
}

func TestReverseBowling_IsInverse(t *testing.T) {
	row := domain.BowlingScorecard{BallsBowled: 24, RunsConceded: 30, Wickets: 2, Maidens: 1}
	before := domain.PlayerAggregate{
		Wickets: 40, BallsBowled: 600, RunsConceded: 500, Maidens: 10,
		FiveWicketHauls: 1, BestBowlingWickets: 6, BestBowlingRuns: 12,
	}
	assert.Equal(t, before, ReverseBowling(ApplyBowling(before, row), row))
}

func TestTouchesHighest(t *testing.T) {
	a := domain.PlayerAggregate{HighestScore: 80}

	assert.True(t, touchesHighest(a, domain.BattingScorecard{Runs: 80}))
	assert.True(t, touchesHighest(a, domain.BattingScorecard{Runs: 95}))
	assert.False(t, touchesHighest(a, domain.BattingScorecard{Runs: 79}))
	assert.False(t, touchesHighest(domain.PlayerAggregate{}, domain.BattingScorecard{Runs: 0}))
}

func TestTouchesBest(t *testing.T) {
	a := domain.PlayerAggregate{BestBowlingWickets: 4, BestBowlingRuns: 22}

	assert.True(t, touchesBest(a, domain.BowlingScorecard{Wickets: 4, RunsConceded: 22, BallsBowled: 24}))
	assert.False(t, touchesBest(a, domain.BowlingScorecard{Wickets: 4, RunsConceded: 25, BallsBowled: 24}))
	assert.False(t, touchesBest(a, domain.BowlingScorecard{Wickets: 3, RunsConceded: 22, BallsBowled: 24}))
	assert.False(t, touchesBest(domain.PlayerAggregate{}, domain.BowlingScorecard{}))

	// A wicketless best can be set by a wicketless spell, so its reversal
	// has to flag the field.
	b := domain.PlayerAggregate{BestBowlingWickets: 0, BestBowlingRuns: 20}
	assert.True(t, touchesBest(b, domain.BowlingScorecard{Wickets: 0, RunsConceded: 20, BallsBowled: 24}))
}
