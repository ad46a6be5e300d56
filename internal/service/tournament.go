package service

import (
	"context"
	"fmt"

	"cricket-sim/internal/domain"
	"cricket-sim/internal/repository"
	"cricket-sim/internal/tournament"

	"github.com/rs/zerolog"
)

// TeamInput is one team with its full roster, in batting order.
type TeamInput struct {
	Name      string
	ShortName string
	Players   []PlayerInput
}

type PlayerInput struct {
	Name string
	Role string
}

// StandingRow is a ranked standings entry decorated with the team name.
type StandingRow struct {
	Rank     int
	TeamID   string
	TeamName string
	domain.TournamentStanding
}

// TournamentService creates tournaments with their rosters and serves the
// standings table. Result recording and resimulation live in the engine.
type TournamentService struct {
	teams    *repository.TeamRepository
	fixtures *repository.FixtureRepository
	engine   *tournament.Engine
	logger   zerolog.Logger
}

func NewTournamentService(
	teams *repository.TeamRepository,
	fixtures *repository.FixtureRepository,
	engine *tournament.Engine,
	logger zerolog.Logger,
) *TournamentService {
	return &TournamentService{
		teams:    teams,
		fixtures: fixtures,
		engine:   engine,
		logger:   logger,
	}
}

// Create inserts the teams and rosters, then seeds the league fixtures and
// zeroed standings.
func (s *TournamentService) Create(ctx context.Context, name string, format domain.Format, inputs []TeamInput) (*domain.Tournament, []domain.Fixture, error) {
	if !format.Valid() {
		return nil, nil, fmt.Errorf("unknown match format %q", format)
	}

	teamIDs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if len(in.Players) < 2 {
			return nil, nil, fmt.Errorf("team %q needs at least 2 players", in.Name)
		}
		team := &domain.Team{Name: in.Name, ShortName: in.ShortName}
		if err := s.teams.Insert(ctx, team); err != nil {
			return nil, nil, err
		}
		for _, p := range in.Players {
			player := &domain.Player{TeamID: team.ID, Name: p.Name, Role: p.Role}
			if err := s.teams.InsertPlayer(ctx, player); err != nil {
				return nil, nil, err
			}
		}
		teamIDs = append(teamIDs, team.ID)
	}

	t, err := s.engine.Create(ctx, name, format, teamIDs)
	if err != nil {
		return nil, nil, err
	}
	fixtures, err := s.fixtures.ListByTournament(ctx, t.ID)
	if err != nil {
		return nil, nil, err
	}
	return t, fixtures, nil
}

// Fixtures lists the tournament's fixtures in bracket order.
func (s *TournamentService) Fixtures(ctx context.Context, tournamentID string) ([]domain.Fixture, error) {
	return s.fixtures.ListByTournament(ctx, tournamentID)
}

// Resimulate reverses a completed fixture so it can be run again.
func (s *TournamentService) Resimulate(ctx context.Context, fixtureID string) error {
	return s.engine.Resimulate(ctx, fixtureID)
}

// Standings returns the ranked table with team names attached.
func (s *TournamentService) Standings(ctx context.Context, tournamentID string) ([]StandingRow, error) {
	standings, err := s.engine.Standings(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	rows := make([]StandingRow, 0, len(standings))
	for i, st := range standings {
		team, err := s.teams.Get(ctx, st.TeamID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, StandingRow{
			Rank:               i + 1,
			TeamID:             st.TeamID,
			TeamName:           team.Name,
			TournamentStanding: st,
		})
	}
	return rows, nil
}
