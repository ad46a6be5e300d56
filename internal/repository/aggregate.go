package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cricket-sim/internal/domain"

	"github.com/rs/zerolog"
)

type AggregateRepository struct {
	db     *sql.DB
	q      DBTX
	logger zerolog.Logger
}

func NewAggregateRepository(sqlDB *sql.DB, logger zerolog.Logger) *AggregateRepository {
	return &AggregateRepository{db: sqlDB, q: sqlDB, logger: logger}
}

func (r *AggregateRepository) WithTx(tx *sql.Tx) *AggregateRepository {
	return &AggregateRepository{db: r.db, q: tx, logger: r.logger}
}

// Get returns the player's aggregate, or a zero-valued one when the player
// has no ledger history yet.
func (r *AggregateRepository) Get(ctx context.Context, playerID string) (domain.PlayerAggregate, error) {
	var a domain.PlayerAggregate
	err := r.q.QueryRowContext(ctx, `
		SELECT player_id, matches, innings_batted, runs, balls_faced, fours, sixes,
			fifties, hundreds, not_outs, highest_score,
			wickets, balls_bowled, runs_conceded, maidens, five_wicket_hauls,
			best_bowling_wickets, best_bowling_runs, stats_stale, updated_at
		FROM player_aggregates WHERE player_id = ?`, playerID).Scan(
		&a.PlayerID, &a.Matches, &a.InningsBatted, &a.Runs, &a.BallsFaced, &a.Fours, &a.Sixes,
		&a.Fifties, &a.Hundreds, &a.NotOuts, &a.HighestScore,
		&a.Wickets, &a.BallsBowled, &a.RunsConceded, &a.Maidens, &a.FiveWicketHauls,
		&a.BestBowlingWickets, &a.BestBowlingRuns, &a.StatsStale, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlayerAggregate{PlayerID: playerID}, nil
	}
	if err != nil {
		return domain.PlayerAggregate{}, err
	}
	return a, nil
}

// Upsert writes the full aggregate row.
func (r *AggregateRepository) Upsert(ctx context.Context, a domain.PlayerAggregate) error {
	a.UpdatedAt = time.Now()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO player_aggregates (
			player_id, matches, innings_batted, runs, balls_faced, fours, sixes,
			fifties, hundreds, not_outs, highest_score,
			wickets, balls_bowled, runs_conceded, maidens, five_wicket_hauls,
			best_bowling_wickets, best_bowling_runs, stats_stale, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			matches = excluded.matches,
			innings_batted = excluded.innings_batted,
			runs = excluded.runs,
			balls_faced = excluded.balls_faced,
			fours = excluded.fours,
			sixes = excluded.sixes,
			fifties = excluded.fifties,
			hundreds = excluded.hundreds,
			not_outs = excluded.not_outs,
			highest_score = excluded.highest_score,
			wickets = excluded.wickets,
			balls_bowled = excluded.balls_bowled,
			runs_conceded = excluded.runs_conceded,
			maidens = excluded.maidens,
			five_wicket_hauls = excluded.five_wicket_hauls,
			best_bowling_wickets = excluded.best_bowling_wickets,
			best_bowling_runs = excluded.best_bowling_runs,
			stats_stale = excluded.stats_stale,
			updated_at = excluded.updated_at`,
		a.PlayerID, a.Matches, a.InningsBatted, a.Runs, a.BallsFaced, a.Fours, a.Sixes,
		a.Fifties, a.Hundreds, a.NotOuts, a.HighestScore,
		a.Wickets, a.BallsBowled, a.RunsConceded, a.Maidens, a.FiveWicketHauls,
		a.BestBowlingWickets, a.BestBowlingRuns, a.StatsStale, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate for %s: %w", a.PlayerID, err)
	}
	return nil
}

// ListStale returns player ids whose non-invertible fields need recompute.
func (r *AggregateRepository) ListStale(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT player_id FROM player_aggregates WHERE stats_stale = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
