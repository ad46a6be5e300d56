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

type TeamRepository struct {
	db     *sql.DB
	q      DBTX
	logger zerolog.Logger
}

func NewTeamRepository(sqlDB *sql.DB, logger zerolog.Logger) *TeamRepository {
	return &TeamRepository{db: sqlDB, q: sqlDB, logger: logger}
}

func (r *TeamRepository) WithTx(tx *sql.Tx) *TeamRepository {
	return &TeamRepository{db: r.db, q: tx, logger: r.logger}
}

func (r *TeamRepository) Insert(ctx context.Context, team *domain.Team) error {
	if team.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		team.ID = id
	}
	now := time.Now()
	team.CreatedAt, team.UpdatedAt = now, now

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO teams (id, name, short_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		team.ID, team.Name, team.ShortName, team.CreatedAt, team.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

func (r *TeamRepository) InsertPlayer(ctx context.Context, player *domain.Player) error {
	if player.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		player.ID = id
	}
	now := time.Now()
	player.CreatedAt, player.UpdatedAt = now, now

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO players (id, team_id, name, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		player.ID, player.TeamID, player.Name, player.Role, player.CreatedAt, player.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

func (r *TeamRepository) Get(ctx context.Context, id string) (*domain.Team, error) {
	var t domain.Team
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, short_name, created_at, updated_at FROM teams WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.ShortName, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListPlayers returns a team's players in batting-order position, which is
// their insertion order.
func (r *TeamRepository) ListPlayers(ctx context.Context, teamID string) ([]domain.Player, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, team_id, name, role, created_at, updated_at FROM players WHERE team_id = ? ORDER BY rowid`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.Role, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
