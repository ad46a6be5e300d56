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

type StandingRepository struct {
	db     *sql.DB
	q      DBTX
	logger zerolog.Logger
}

func NewStandingRepository(sqlDB *sql.DB, logger zerolog.Logger) *StandingRepository {
	return &StandingRepository{db: sqlDB, q: sqlDB, logger: logger}
}

func (r *StandingRepository) WithTx(tx *sql.Tx) *StandingRepository {
	return &StandingRepository{db: r.db, q: tx, logger: r.logger}
}

// Init seeds a zero row per team so standings listings are complete before
// any fixture completes.
func (r *StandingRepository) Init(ctx context.Context, tournamentID string, teamIDs []string) error {
	for _, teamID := range teamIDs {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO standings (tournament_id, team_id, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(tournament_id, team_id) DO NOTHING`,
			tournamentID, teamID, time.Now())
		if err != nil {
			return fmt.Errorf("failed to init standing for %s: %w", teamID, err)
		}
	}
	return nil
}

func (r *StandingRepository) Get(ctx context.Context, tournamentID, teamID string) (domain.TournamentStanding, error) {
	var s domain.TournamentStanding
	err := r.q.QueryRowContext(ctx, `
		SELECT tournament_id, team_id, played, won, lost, tied, points,
			runs_for, balls_faced, runs_against, balls_bowled, updated_at
		FROM standings WHERE tournament_id = ? AND team_id = ?`, tournamentID, teamID).Scan(
		&s.TournamentID, &s.TeamID, &s.Played, &s.Won, &s.Lost, &s.Tied, &s.Points,
		&s.RunsFor, &s.BallsFaced, &s.RunsAgainst, &s.BallsBowled, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TournamentStanding{TournamentID: tournamentID, TeamID: teamID}, nil
	}
	if err != nil {
		return domain.TournamentStanding{}, err
	}
	return s, nil
}

func (r *StandingRepository) Upsert(ctx context.Context, s domain.TournamentStanding) error {
	s.UpdatedAt = time.Now()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO standings (
			tournament_id, team_id, played, won, lost, tied, points,
			runs_for, balls_faced, runs_against, balls_bowled, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tournament_id, team_id) DO UPDATE SET
			played = excluded.played,
			won = excluded.won,
			lost = excluded.lost,
			tied = excluded.tied,
			points = excluded.points,
			runs_for = excluded.runs_for,
			balls_faced = excluded.balls_faced,
			runs_against = excluded.runs_against,
			balls_bowled = excluded.balls_bowled,
			updated_at = excluded.updated_at`,
		s.TournamentID, s.TeamID, s.Played, s.Won, s.Lost, s.Tied, s.Points,
		s.RunsFor, s.BallsFaced, s.RunsAgainst, s.BallsBowled, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert standing for %s: %w", s.TeamID, err)
	}
	return nil
}

func (r *StandingRepository) List(ctx context.Context, tournamentID string) ([]domain.TournamentStanding, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT tournament_id, team_id, played, won, lost, tied, points,
			runs_for, balls_faced, runs_against, balls_bowled, updated_at
		FROM standings WHERE tournament_id = ?`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []domain.TournamentStanding
	for rows.Next() {
		var s domain.TournamentStanding
		if err := rows.Scan(&s.TournamentID, &s.TeamID, &s.Played, &s.Won, &s.Lost, &s.Tied,
			&s.Points, &s.RunsFor, &s.BallsFaced, &s.RunsAgainst, &s.BallsBowled,
			&s.UpdatedAt); err != nil {
			return nil, err
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

// Reset zeroes every standing row for the tournament. Reserved for the
// explicit full-recompute path, never normal fixture transitions.
func (r *StandingRepository) Reset(ctx context.Context, tournamentID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE standings SET
			played = 0, won = 0, lost = 0, tied = 0, points = 0,
			runs_for = 0, balls_faced = 0, runs_against = 0, balls_bowled = 0,
			updated_at = ?
		WHERE tournament_id = ?`, time.Now(), tournamentID)
	if err != nil {
		return fmt.Errorf("failed to reset standings: %w", err)
	}
	return nil
}
