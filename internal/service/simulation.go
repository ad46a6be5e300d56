package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cricket-sim/internal/commentary"
	"cricket-sim/internal/domain"
	"cricket-sim/internal/ledger"
	"cricket-sim/internal/metrics"
	"cricket-sim/internal/provider"
	"cricket-sim/internal/repository"
	"cricket-sim/internal/sim"
	"cricket-sim/internal/tournament"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ErrScenarioInvalid means the provider scored the master scenario below
// the acceptance threshold. The error text carries the provider's feedback.
var ErrScenarioInvalid = errors.New("master scenario rejected")

// ErrMatchNotFound is the not-found sentinel for match lookups.
var ErrMatchNotFound = errors.New("match not found")

// OutcomeProvider is the external generative source: chunk generation plus
// scenario validation. Satisfied by provider.OutcomeClient.
type OutcomeProvider interface {
	NextChunk(ctx context.Context, req provider.ChunkRequest) (domain.OverChunk, error)
	ValidateScenario(ctx context.Context, scenario string, format domain.Format) (domain.MasterScenario, error)
}

// SimulationService ties a fixture to a live orchestrator and persists the
// finished result. Nothing is written to the database until the simulation
// completes; a failed run leaves only the match row, marked failed.
type SimulationService struct {
	db         *sql.DB
	teams      *repository.TeamRepository
	matches    *repository.MatchRepository
	fixtures   *repository.FixtureRepository
	scorecards *repository.ScorecardRepository
	aggregates *repository.AggregateRepository
	provider   OutcomeProvider
	commentary *commentary.Engine
	ledger     *ledger.Ledger
	tournament *tournament.Engine
	registry   *sim.Registry
	logger     zerolog.Logger
}

func NewSimulationService(
	db *sql.DB,
	teams *repository.TeamRepository,
	matches *repository.MatchRepository,
	fixtures *repository.FixtureRepository,
	scorecards *repository.ScorecardRepository,
	aggregates *repository.AggregateRepository,
	prov OutcomeProvider,
	engine *commentary.Engine,
	led *ledger.Ledger,
	te *tournament.Engine,
	registry *sim.Registry,
	logger zerolog.Logger,
) *SimulationService {
	return &SimulationService{
		db:         db,
		teams:      teams,
		matches:    matches,
		fixtures:   fixtures,
		scorecards: scorecards,
		aggregates: aggregates,
		provider:   prov,
		commentary: engine,
		ledger:     led,
		tournament: te,
		registry:   registry,
		logger:     logger,
	}
}

// StartMatch validates the scenario, creates the match row and registers a
// live orchestrator for the fixture. Scenario rejection fails fast before
// anything is written.
func (s *SimulationService) StartMatch(ctx context.Context, fixtureID, scenarioText string) (*domain.Match, error) {
	f, err := s.fixtures.Get(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture: %w", err)
	}
	if f.Status == domain.FixtureCompleted {
		return nil, fmt.Errorf("fixture %s already completed; resimulate it instead", fixtureID)
	}
	if f.TeamAID == "" || f.TeamBID == "" {
		return nil, fmt.Errorf("fixture %s has no teams assigned yet", fixtureID)
	}
	if f.MatchID != "" && s.registry.Active(f.MatchID) {
		return nil, fmt.Errorf("%w: %s", sim.ErrSimulationActive, f.MatchID)
	}

	t, err := s.fixtures.GetTournament(ctx, f.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament: %w", err)
	}

	scenario, err := s.provider.ValidateScenario(ctx, scenarioText, t.Format)
	if err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}
	if !scenario.Valid {
		return nil, fmt.Errorf("%w (score %d/10): %s", ErrScenarioInvalid, scenario.Score, scenario.Feedback)
	}

	orderA, err := s.battingOrder(ctx, f.TeamAID)
	if err != nil {
		return nil, err
	}
	orderB, err := s.battingOrder(ctx, f.TeamBID)
	if err != nil {
		return nil, err
	}

	matchID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate match id: %w", err)
	}

	m := &domain.Match{
		ID:           matchID,
		TournamentID: f.TournamentID,
		FixtureID:    f.ID,
		TeamAID:      f.TeamAID,
		TeamBID:      f.TeamBID,
		Format:       t.Format,
		Scenario:     scenario,
		Status:       domain.MatchInProgress,
	}
	if err := s.matches.Insert(ctx, m); err != nil {
		return nil, err
	}

	f.MatchID = matchID
	if err := s.fixtures.Update(ctx, f); err != nil {
		return nil, err
	}

	state := domain.NewMatchState(matchID, t.Format, scenario, f.TeamAID, f.TeamBID, orderA, orderB)
	names, teamNames, err := s.nameIndex(ctx, f.TeamAID, f.TeamBID)
	if err != nil {
		return nil, err
	}
	orch := sim.NewOrchestrator(state, s.provider, s.commentary, names, teamNames, s.logger)
	if err := s.registry.Add(matchID, orch); err != nil {
		return nil, err
	}

	metrics.SimulationsStarted.Inc()
	s.logger.Info().
		Str("match_id", matchID).
		Str("fixture_id", fixtureID).
		Int("scenario_score", scenario.Score).
		Msg("match started")
	return m, nil
}

// AdvanceChunk drives one chunk of the named live match.
func (s *SimulationService) AdvanceChunk(ctx context.Context, matchID string) (*domain.MatchState, error) {
	orch, ok := s.registry.Get(matchID)
	if !ok {
		return nil, fmt.Errorf("%w: no live simulation for %s", ErrMatchNotFound, matchID)
	}
	if err := orch.AdvanceChunk(ctx); err != nil {
		if terminal(err) {
			s.failMatch(ctx, matchID, err)
		}
		return nil, err
	}
	if orch.State().Finished {
		if err := s.persist(ctx, matchID, orch.BuildResult()); err != nil {
			return nil, err
		}
	}
	return orch.State(), nil
}

// RunToCompletion drives the match chunk by chunk until it finishes, then
// persists the result, applies the stat ledger and records the fixture.
func (s *SimulationService) RunToCompletion(ctx context.Context, matchID string) (*domain.Match, error) {
	orch, ok := s.registry.Get(matchID)
	if !ok {
		return nil, fmt.Errorf("%w: no live simulation for %s", ErrMatchNotFound, matchID)
	}

	result, err := orch.RunToCompletion(ctx)
	if err != nil {
		if terminal(err) {
			s.failMatch(ctx, matchID, err)
		}
		return nil, err
	}
	if err := s.persist(ctx, matchID, result); err != nil {
		return nil, err
	}
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMatchState returns the live state if a simulation is running, or the
// persisted match otherwise.
func (s *SimulationService) GetMatchState(ctx context.Context, matchID string, lastBalls int) (*domain.Match, *domain.MatchState, []domain.BallOutcome, error) {
	if orch, ok := s.registry.Get(matchID); ok {
		balls := orch.Balls()
		if lastBalls > 0 && len(balls) > lastBalls {
			balls = balls[len(balls)-lastBalls:]
		}
		return nil, orch.State(), balls, nil
	}

	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
		}
		return nil, nil, nil, err
	}
	balls, err := s.matches.ListBalls(ctx, matchID, lastBalls)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, nil, balls, nil
}

// persist writes the finished result in one transaction, then applies the
// ledger and the tournament record as their own atomic steps. The registry
// entry is released only after the match row is durable.
func (s *SimulationService) persist(ctx context.Context, matchID string, result *domain.MatchResult) error {
	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return err
	}
	result.Match.TournamentID = m.TournamentID
	result.Match.FixtureID = m.FixtureID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.matches.WithTx(tx).Finalize(ctx, &result.Match); err != nil {
		return err
	}
	if err := s.matches.WithTx(tx).InsertBalls(ctx, result.Balls); err != nil {
		return err
	}
	scorecards := s.scorecards.WithTx(tx)
	if err := scorecards.InsertBatting(ctx, result.Batting); err != nil {
		return err
	}
	if err := scorecards.InsertBowling(ctx, result.Bowling); err != nil {
		return err
	}
	if err := scorecards.InsertPartnerships(ctx, result.Partnerships); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := s.ledger.Apply(ctx, matchID); err != nil {
		return err
	}
	if err := s.tournament.RecordResult(ctx, result.Match.FixtureID, &result.Match); err != nil {
		return err
	}

	s.registry.Remove(matchID)
	metrics.SimulationsCompleted.Inc()
	s.logger.Info().
		Str("match_id", matchID).
		Str("result", result.Match.ResultText).
		Int("balls", len(result.Balls)).
		Msg("match persisted")
	return nil
}

// failMatch marks the row failed and drops the live orchestrator. No balls,
// scorecards or aggregates are written for a failed run.
func (s *SimulationService) failMatch(ctx context.Context, matchID string, cause error) {
	s.registry.Remove(matchID)
	metrics.SimulationsFailed.Inc()

	m, err := s.matches.Get(ctx, matchID)
	if err != nil {
		s.logger.Error().Err(err).Str("match_id", matchID).Msg("failed to load match for failure mark")
		return
	}
	m.Status = domain.MatchFailed
	m.ResultText = cause.Error()
	if err := s.matches.Finalize(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("match_id", matchID).Msg("failed to mark match failed")
	}
	s.logger.Warn().Err(cause).Str("match_id", matchID).Msg("simulation failed, nothing persisted")
}

func terminal(err error) bool {
	return errors.Is(err, sim.ErrRetryCeiling)
}

func (s *SimulationService) battingOrder(ctx context.Context, teamID string) ([]string, error) {
	players, err := s.teams.ListPlayers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if len(players) < 2 {
		return nil, fmt.Errorf("team %s has %d players, need at least 2", teamID, len(players))
	}
	order := make([]string, len(players))
	for i, p := range players {
		order[i] = p.ID
	}
	return order, nil
}

func (s *SimulationService) nameIndex(ctx context.Context, teamIDs ...string) (map[string]string, map[string]string, error) {
	players := make(map[string]string)
	teams := make(map[string]string)
	for _, teamID := range teamIDs {
		team, err := s.teams.Get(ctx, teamID)
		if err != nil {
			return nil, nil, err
		}
		teams[teamID] = team.Name

		roster, err := s.teams.ListPlayers(ctx, teamID)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range roster {
			players[p.ID] = p.Name
		}
	}
	return players, teams, nil
}

// PlayerStats exposes the ledger-maintained career aggregate. Stale rows are
// recomputed on read before being returned.
func (s *SimulationService) PlayerStats(ctx context.Context, playerID string) (domain.PlayerAggregate, error) {
	agg, err := s.aggregates.Get(ctx, playerID)
	if err != nil {
		return domain.PlayerAggregate{}, err
	}
	if agg.StatsStale {
		if err := s.ledger.Recompute(ctx, playerID); err != nil {
			return domain.PlayerAggregate{}, err
		}
		agg, err = s.aggregates.Get(ctx, playerID)
		if err != nil {
			return domain.PlayerAggregate{}, err
		}
	}
	return agg, nil
}
