package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cricket-sim/internal/domain"
	"cricket-sim/internal/metrics"
	"cricket-sim/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAlreadyApplied signals a double-application bug upstream. Never
	// swallowed.
	ErrAlreadyApplied = errors.New("match stats already applied")

	// ErrNotApplied signals a reversal without a prior application.
	ErrNotApplied = errors.New("match stats not currently applied")
)

// Ledger applies a completed match's scorecards to player aggregates at
// most once, and can reverse that application exactly. Aggregates are
// mutated only through here.
type Ledger struct {
	db         *sql.DB
	matches    *repository.MatchRepository
	scorecards *repository.ScorecardRepository
	aggregates *repository.AggregateRepository
	logger     zerolog.Logger
}

func New(
	db *sql.DB,
	matches *repository.MatchRepository,
	scorecards *repository.ScorecardRepository,
	aggregates *repository.AggregateRepository,
	logger zerolog.Logger,
) *Ledger {
	return &Ledger{
		db:         db,
		matches:    matches,
		scorecards: scorecards,
		aggregates: aggregates,
		logger:     logger,
	}
}

// Apply folds the match's scorecards into every involved player's
// aggregate, one transaction for the whole player set.
func (l *Ledger) Apply(ctx context.Context, matchID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := l.ApplyTx(ctx, tx, matchID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.LedgerApplies.WithLabelValues("apply").Inc()
	l.logger.Info().Str("match_id", matchID).Msg("match stats applied")
	return nil
}

// ApplyTx is Apply within a caller-owned transaction.
func (l *Ledger) ApplyTx(ctx context.Context, tx *sql.Tx, matchID string) error {
	matches := l.matches.WithTx(tx)
	m, err := matches.Get(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to load match: %w", err)
	}
	if m.StatsApplied {
		return fmt.Errorf("%w: %s", ErrAlreadyApplied, matchID)
	}

	batting, bowling, err := l.loadScorecards(ctx, tx, matchID)
	if err != nil {
		return err
	}

	aggregates := l.aggregates.WithTx(tx)
	for _, playerID := range playerSet(batting, bowling) {
		agg, err := aggregates.Get(ctx, playerID)
		if err != nil {
			return fmt.Errorf("failed to load aggregate for %s: %w", playerID, err)
		}

		for _, row := range batting {
			if row.PlayerID == playerID {
				agg = ApplyBatting(agg, row)
			}
		}
		for _, row := range bowling {
			if row.PlayerID == playerID {
				agg = ApplyBowling(agg, row)
			}
		}
		// Once per player per match, however many rows they have.
		agg.Matches++

		if err := aggregates.Upsert(ctx, agg); err != nil {
			return err
		}
	}

	return matches.SetStatsApplied(ctx, matchID, true)
}

// Reverse performs the exact inverse of Apply, clamped at zero. The
// non-invertible fields (highest score, best bowling) are flagged stale
// when this match may have set them; they need Recompute before being
// trusted again.
func (l *Ledger) Reverse(ctx context.Context, matchID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := l.ReverseTx(ctx, tx, matchID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.LedgerApplies.WithLabelValues("reverse").Inc()
	l.logger.Info().Str("match_id", matchID).Msg("match stats reversed")
	return nil
}

// ReverseTx is Reverse within a caller-owned transaction, so the resimulate
// transition can compose it with standings reversal and artifact deletion.
func (l *Ledger) ReverseTx(ctx context.Context, tx *sql.Tx, matchID string) error {
	matches := l.matches.WithTx(tx)
	m, err := matches.Get(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to load match: %w", err)
	}
	if !m.StatsApplied {
		return fmt.Errorf("%w: %s", ErrNotApplied, matchID)
	}

	batting, bowling, err := l.loadScorecards(ctx, tx, matchID)
	if err != nil {
		return err
	}

	aggregates := l.aggregates.WithTx(tx)
	for _, playerID := range playerSet(batting, bowling) {
		agg, err := aggregates.Get(ctx, playerID)
		if err != nil {
			return fmt.Errorf("failed to load aggregate for %s: %w", playerID, err)
		}

		stale := false
		for _, row := range batting {
			if row.PlayerID != playerID {
				continue
			}
			if touchesHighest(agg, row) {
				stale = true
			}
			agg = ReverseBatting(agg, row)
		}
		for _, row := range bowling {
			if row.PlayerID != playerID {
				continue
			}
			if touchesBest(agg, row) {
				stale = true
			}
			agg = ReverseBowling(agg, row)
		}
		agg.Matches = clamp(agg.Matches - 1)
		if stale {
			agg.StatsStale = true
		}

		if err := aggregates.Upsert(ctx, agg); err != nil {
			return err
		}
	}

	return matches.SetStatsApplied(ctx, matchID, false)
}

// Recompute rebuilds a player's non-invertible fields by replaying their
// remaining applied scorecards, then clears the stale flag.
func (l *Ledger) Recompute(ctx context.Context, playerID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scorecards := l.scorecards.WithTx(tx)
	aggregates := l.aggregates.WithTx(tx)

	agg, err := aggregates.Get(ctx, playerID)
	if err != nil {
		return err
	}

	batting, err := scorecards.GetAppliedBattingByPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	bowling, err := scorecards.GetAppliedBowlingByPlayer(ctx, playerID)
	if err != nil {
		return err
	}

	agg.HighestScore = 0
	for _, row := range batting {
		if row.Runs > agg.HighestScore {
			agg.HighestScore = row.Runs
		}
	}
	agg.BestBowlingWickets, agg.BestBowlingRuns = 0, 0
	bestSet := false
	for _, row := range bowling {
		if row.BallsBowled == 0 {
			continue
		}
		if !bestSet || betterBowling(row.Wickets, row.RunsConceded, agg.BestBowlingWickets, agg.BestBowlingRuns) {
			agg.BestBowlingWickets = row.Wickets
			agg.BestBowlingRuns = row.RunsConceded
			bestSet = true
		}
	}
	agg.StatsStale = false

	if err := aggregates.Upsert(ctx, agg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	l.logger.Info().Str("player_id", playerID).Msg("stale aggregate fields recomputed")
	return nil
}

// RecomputeStale recomputes every flagged player, a few at a time.
func (l *Ledger) RecomputeStale(ctx context.Context) error {
	ids, err := l.aggregates.ListStale(ctx)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, playerID := range ids {
		g.Go(func() error {
			return l.Recompute(gCtx, playerID)
		})
	}
	return g.Wait()
}

func (l *Ledger) loadScorecards(ctx context.Context, tx *sql.Tx, matchID string) ([]domain.BattingScorecard, []domain.BowlingScorecard, error) {
	scorecards := l.scorecards.WithTx(tx)
	batting, err := scorecards.GetBattingByMatch(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load batting scorecards: %w", err)
	}
	bowling, err := scorecards.GetBowlingByMatch(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bowling scorecards: %w", err)
	}
	return batting, bowling, nil
}

// playerSet lists every player with at least one scorecard row, in a stable
// order.
func playerSet(batting []domain.BattingScorecard, bowling []domain.BowlingScorecard) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range batting {
		if !seen[row.PlayerID] {
			seen[row.PlayerID] = true
			ids = append(ids, row.PlayerID)
		}
	}
	for _, row := range bowling {
		if !seen[row.PlayerID] {
			seen[row.PlayerID] = true
			ids = append(ids, row.PlayerID)
		}
	}
	return ids
}
