package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cricket-sim/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type ScorecardRepository struct {
	db     *sql.DB
	q      DBTX
	logger zerolog.Logger
}

func NewScorecardRepository(sqlDB *sql.DB, logger zerolog.Logger) *ScorecardRepository {
	return &ScorecardRepository{db: sqlDB, q: sqlDB, logger: logger}
}

func (r *ScorecardRepository) WithTx(tx *sql.Tx) *ScorecardRepository {
	return &ScorecardRepository{db: r.db, q: tx, logger: r.logger}
}

func (r *ScorecardRepository) InsertBatting(ctx context.Context, rows []domain.BattingScorecard) error {
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
			row.ID = id
		}
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO batting_scorecards (
				id, match_id, player_id, team_id, innings, position,
				runs, balls, fours, sixes, out, dismissal
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.MatchID, row.PlayerID, row.TeamID, row.Innings, row.Position,
			row.Runs, row.Balls, row.Fours, row.Sixes, row.Out, string(row.Dismissal))
		if err != nil {
			return fmt.Errorf("failed to insert batting scorecard: %w", err)
		}
	}
	return nil
}

func (r *ScorecardRepository) InsertBowling(ctx context.Context, rows []domain.BowlingScorecard) error {
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
			row.ID = id
		}
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO bowling_scorecards (
				id, match_id, player_id, team_id, innings,
				balls_bowled, runs_conceded, wickets, maidens
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.MatchID, row.PlayerID, row.TeamID, row.Innings,
			row.BallsBowled, row.RunsConceded, row.Wickets, row.Maidens)
		if err != nil {
			return fmt.Errorf("failed to insert bowling scorecard: %w", err)
		}
	}
	return nil
}

func (r *ScorecardRepository) InsertPartnerships(ctx context.Context, rows []domain.Partnership) error {
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
			row.ID = id
		}
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO partnerships (id, match_id, innings, wicket, runs, balls)
			VALUES (?, ?, ?, ?, ?, ?)`,
			row.ID, row.MatchID, row.Innings, row.Wicket, row.Runs, row.Balls)
		if err != nil {
			return fmt.Errorf("failed to insert partnership: %w", err)
		}
	}
	return nil
}

func (r *ScorecardRepository) GetBattingByMatch(ctx context.Context, matchID string) ([]domain.BattingScorecard, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, match_id, player_id, team_id, innings, position,
			runs, balls, fours, sixes, out, dismissal
		FROM batting_scorecards WHERE match_id = ? ORDER BY innings, position`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBattingRows(rows)
}

func (r *ScorecardRepository) GetBowlingByMatch(ctx context.Context, matchID string) ([]domain.BowlingScorecard, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, match_id, player_id, team_id, innings,
			balls_bowled, runs_conceded, wickets, maidens
		FROM bowling_scorecards WHERE match_id = ? ORDER BY innings, rowid`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBowlingRows(rows)
}

// GetAppliedBattingByPlayer returns the player's batting rows from matches
// currently marked applied in the ledger. Used by the stale-field recompute.
func (r *ScorecardRepository) GetAppliedBattingByPlayer(ctx context.Context, playerID string) ([]domain.BattingScorecard, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT b.id, b.match_id, b.player_id, b.team_id, b.innings, b.position,
			b.runs, b.balls, b.fours, b.sixes, b.out, b.dismissal
		FROM batting_scorecards b
		JOIN matches m ON m.id = b.match_id
		WHERE b.player_id = ? AND m.stats_applied = 1`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBattingRows(rows)
}

func (r *ScorecardRepository) GetAppliedBowlingByPlayer(ctx context.Context, playerID string) ([]domain.BowlingScorecard, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT b.id, b.match_id, b.player_id, b.team_id, b.innings,
			b.balls_bowled, b.runs_conceded, b.wickets, b.maidens
		FROM bowling_scorecards b
		JOIN matches m ON m.id = b.match_id
		WHERE b.player_id = ? AND m.stats_applied = 1`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBowlingRows(rows)
}

// DeleteByMatch removes all scorecard and partnership rows for a match.
// Reversal deletes whole rows, never a subset of their contribution.
func (r *ScorecardRepository) DeleteByMatch(ctx context.Context, matchID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM batting_scorecards WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("failed to delete batting scorecards: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM bowling_scorecards WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("failed to delete bowling scorecards: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM partnerships WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("failed to delete partnerships: %w", err)
	}
	return nil
}

func scanBattingRows(rows *sql.Rows) ([]domain.BattingScorecard, error) {
	var out []domain.BattingScorecard
	for rows.Next() {
		var (
			b         domain.BattingScorecard
			dismissal string
		)
		if err := rows.Scan(&b.ID, &b.MatchID, &b.PlayerID, &b.TeamID, &b.Innings, &b.Position,
			&b.Runs, &b.Balls, &b.Fours, &b.Sixes, &b.Out, &dismissal); err != nil {
			return nil, err
		}
		b.Dismissal = domain.WicketKind(dismissal)
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBowlingRows(rows *sql.Rows) ([]domain.BowlingScorecard, error) {
	var out []domain.BowlingScorecard
	for rows.Next() {
		var b domain.BowlingScorecard
		if err := rows.Scan(&b.ID, &b.MatchID, &b.PlayerID, &b.TeamID, &b.Innings,
			&b.BallsBowled, &b.RunsConceded, &b.Wickets, &b.Maidens); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
