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

type FixtureRepository struct {
	db     *sql.DB
	q      DBTX
	logger zerolog.Logger
}

func NewFixtureRepository(sqlDB *sql.DB, logger zerolog.Logger) *FixtureRepository {
	return &FixtureRepository{db: sqlDB, q: sqlDB, logger: logger}
}

func (r *FixtureRepository) WithTx(tx *sql.Tx) *FixtureRepository {
	return &FixtureRepository{db: r.db, q: tx, logger: r.logger}
}

func (r *FixtureRepository) Insert(ctx context.Context, f *domain.Fixture) error {
	if f.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		f.ID = id
	}
	now := time.Now()
	f.CreatedAt, f.UpdatedAt = now, now
	if f.Status == "" {
		f.Status = domain.FixtureScheduled
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO fixtures (
			id, tournament_id, stage, position, team_a_id, team_b_id,
			match_id, status, standings_applied, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.TournamentID, string(f.Stage), f.Position, f.TeamAID, f.TeamBID,
		f.MatchID, string(f.Status), f.StandingsApplied, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert fixture: %w", err)
	}
	return nil
}

func (r *FixtureRepository) Get(ctx context.Context, id string) (*domain.Fixture, error) {
	var (
		f      domain.Fixture
		stage  string
		status string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, tournament_id, stage, position, team_a_id, team_b_id,
			match_id, status, standings_applied, created_at, updated_at
		FROM fixtures WHERE id = ?`, id).Scan(
		&f.ID, &f.TournamentID, &stage, &f.Position, &f.TeamAID, &f.TeamBID,
		&f.MatchID, &status, &f.StandingsApplied, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Stage = domain.Stage(stage)
	f.Status = domain.FixtureStatus(status)
	return &f, nil
}

// Update rewrites the fixture's mutable fields: teams (playoff bracket
// fill), match link, status and the standings flag.
func (r *FixtureRepository) Update(ctx context.Context, f *domain.Fixture) error {
	f.UpdatedAt = time.Now()
	res, err := r.q.ExecContext(ctx, `
		UPDATE fixtures SET
			team_a_id = ?, team_b_id = ?, match_id = ?, status = ?,
			standings_applied = ?, updated_at = ?
		WHERE id = ?`,
		f.TeamAID, f.TeamBID, f.MatchID, string(f.Status),
		f.StandingsApplied, f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("failed to update fixture: %w", err)
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

func (r *FixtureRepository) ListByTournament(ctx context.Context, tournamentID string) ([]domain.Fixture, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, tournament_id, stage, position, team_a_id, team_b_id,
			match_id, status, standings_applied, created_at, updated_at
		FROM fixtures WHERE tournament_id = ? ORDER BY stage, position`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fixtures []domain.Fixture
	for rows.Next() {
		var (
			f      domain.Fixture
			stage  string
			status string
		)
		if err := rows.Scan(&f.ID, &f.TournamentID, &stage, &f.Position, &f.TeamAID, &f.TeamBID,
			&f.MatchID, &status, &f.StandingsApplied, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Stage = domain.Stage(stage)
		f.Status = domain.FixtureStatus(status)
		fixtures = append(fixtures, f)
	}
	return fixtures, rows.Err()
}

func (r *FixtureRepository) InsertTournament(ctx context.Context, t *domain.Tournament) error {
	if t.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		t.ID = id
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Stage == "" {
		t.Stage = domain.TournamentLeague
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO tournaments (id, name, format, stage, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, string(t.Format), string(t.Stage), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tournament: %w", err)
	}
	return nil
}

func (r *FixtureRepository) GetTournament(ctx context.Context, id string) (*domain.Tournament, error) {
	var (
		t      domain.Tournament
		format string
		stage  string
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, format, stage, created_at, updated_at FROM tournaments WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &format, &stage, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Format = domain.Format(format)
	t.Stage = domain.TournamentStage(stage)
	return &t, nil
}

func (r *FixtureRepository) SetTournamentStage(ctx context.Context, tournamentID string, stage domain.TournamentStage) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE tournaments SET stage = ?, updated_at = ? WHERE id = ?`,
		string(stage), time.Now(), tournamentID)
	if err != nil {
		return fmt.Errorf("failed to set tournament stage: %w", err)
	}
	return nil
}
