package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cricket-sim/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type MatchRepository struct {
	db     *sql.DB
	q      DBTX
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: sqlDB, q: sqlDB, logger: logger}
}

func (r *MatchRepository) WithTx(tx *sql.Tx) *MatchRepository {
	return &MatchRepository{db: r.db, q: tx, logger: r.logger}
}

func (r *MatchRepository) Insert(ctx context.Context, m *domain.Match) error {
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO matches (
			id, tournament_id, fixture_id, team_a_id, team_b_id, format,
			scenario_text, scenario_score, scenario_valid, scenario_feedback,
			status, stats_applied, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		m.ID, m.TournamentID, m.FixtureID, m.TeamAID, m.TeamBID, string(m.Format),
		m.Scenario.Text, m.Scenario.Score, m.Scenario.Valid, m.Scenario.Feedback,
		string(m.Status), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

// Finalize writes the terminal status and final summary onto the match row.
// Completed and failed runs both land here; the status comes from m.Status.
func (r *MatchRepository) Finalize(ctx context.Context, m *domain.Match) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE matches SET
			status = ?, winner_team_id = ?, result_text = ?,
			inn1_batting_team_id = ?, inn1_runs = ?, inn1_wickets = ?, inn1_legal_balls = ?,
			inn2_batting_team_id = ?, inn2_runs = ?, inn2_wickets = ?, inn2_legal_balls = ?,
			updated_at = ?
		WHERE id = ?`,
		string(m.Status), m.WinnerTeamID, m.ResultText,
		m.InningsScores[0].BattingTeamID, m.InningsScores[0].Runs, m.InningsScores[0].Wickets, m.InningsScores[0].LegalBalls,
		m.InningsScores[1].BattingTeamID, m.InningsScores[1].Runs, m.InningsScores[1].Wickets, m.InningsScores[1].LegalBalls,
		time.Now(), m.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize match: %w", err)
	}
	return nil
}

func (r *MatchRepository) Get(ctx context.Context, id string) (*domain.Match, error) {
	var (
		m      domain.Match
		format string
		status string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, tournament_id, fixture_id, team_a_id, team_b_id, format,
			scenario_text, scenario_score, scenario_valid, scenario_feedback,
			status, stats_applied, winner_team_id, result_text,
			inn1_batting_team_id, inn1_runs, inn1_wickets, inn1_legal_balls,
			inn2_batting_team_id, inn2_runs, inn2_wickets, inn2_legal_balls,
			created_at, updated_at
		FROM matches WHERE id = ?`, id).Scan(
		&m.ID, &m.TournamentID, &m.FixtureID, &m.TeamAID, &m.TeamBID, &format,
		&m.Scenario.Text, &m.Scenario.Score, &m.Scenario.Valid, &m.Scenario.Feedback,
		&status, &m.StatsApplied, &m.WinnerTeamID, &m.ResultText,
		&m.InningsScores[0].BattingTeamID, &m.InningsScores[0].Runs, &m.InningsScores[0].Wickets, &m.InningsScores[0].LegalBalls,
		&m.InningsScores[1].BattingTeamID, &m.InningsScores[1].Runs, &m.InningsScores[1].Wickets, &m.InningsScores[1].LegalBalls,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Format = domain.Format(format)
	m.Status = domain.MatchStatus(status)
	return &m, nil
}

// SetStatsApplied flips the at-most-once ledger flag. Callers compose it
// into the ledger transaction via WithTx.
func (r *MatchRepository) SetStatsApplied(ctx context.Context, matchID string, applied bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE matches SET stats_applied = ?, updated_at = ? WHERE id = ?`,
		applied, time.Now(), matchID)
	if err != nil {
		return fmt.Errorf("failed to set stats_applied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *MatchRepository) InsertBalls(ctx context.Context, balls []domain.BallOutcome) error {
	for i := range balls {
		ball := &balls[i]
		if ball.ID == "" {
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
			ball.ID = id
		}
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO balls (
				id, match_id, innings, sequence, over_number, ball_in_over,
				batter_id, bowler_id, kind, runs, wicket_type, extra_type,
				commentary, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ball.ID, ball.MatchID, ball.Innings, ball.Sequence, ball.Over, ball.BallInOver,
			ball.BatterID, ball.BowlerID, int(ball.Event.Kind), ball.Event.Runs,
			string(ball.Event.Wicket), string(ball.Event.Extra),
			ball.Commentary, ball.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert ball %d: %w", ball.Sequence, err)
		}
	}
	return nil
}

// ListBalls returns a match's deliveries in order, optionally limited to the
// most recent n (n <= 0 returns all).
func (r *MatchRepository) ListBalls(ctx context.Context, matchID string, n int) ([]domain.BallOutcome, error) {
	query := `
		SELECT id, match_id, innings, sequence, over_number, ball_in_over,
			batter_id, bowler_id, kind, runs, wicket_type, extra_type,
			commentary, created_at
		FROM balls WHERE match_id = ? ORDER BY innings, sequence`
	rows, err := r.q.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balls []domain.BallOutcome
	for rows.Next() {
		var (
			b      domain.BallOutcome
			kind   int
			wicket string
			extra  string
		)
		if err := rows.Scan(&b.ID, &b.MatchID, &b.Innings, &b.Sequence, &b.Over, &b.BallInOver,
			&b.BatterID, &b.BowlerID, &kind, &b.Event.Runs, &wicket, &extra,
			&b.Commentary, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Event.Kind = domain.BallKind(kind)
		b.Event.Wicket = domain.WicketKind(wicket)
		b.Event.Extra = domain.ExtraKind(extra)
		balls = append(balls, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n > 0 && len(balls) > n {
		balls = balls[len(balls)-n:]
	}
	return balls, nil
}

// DeleteArtifacts removes a match's balls and the match row itself. The
// scorecard repository owns the scorecard/partnership deletions; the
// resimulate transition composes both under one transaction.
func (r *MatchRepository) DeleteArtifacts(ctx context.Context, matchID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM balls WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("failed to delete balls: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, matchID); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	return nil
}
