package tournament

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"cricket-sim/internal/constants"
	"cricket-sim/internal/domain"
	"cricket-sim/internal/ledger"
	"cricket-sim/internal/repository"
	"cricket-sim/internal/sim"

	"github.com/rs/zerolog"
)

var (
	// ErrStandingsInconsistent means the fixture's standings flag and the
	// ledger's applied flag disagree. The transition aborts and the
	// fixture is left untouched rather than guessing.
	ErrStandingsInconsistent = errors.New("fixture standings flag inconsistent with ledger state")

	// ErrFixtureNotCompleted is returned when resimulating a fixture that
	// has no completed match to reverse.
	ErrFixtureNotCompleted = errors.New("fixture has no completed match")
)

// Engine owns fixtures, standings and stage transitions. Standings move by
// applying or reversing one fixture's result at a time; the full recompute
// exists only behind the explicit tournament reset.
type Engine struct {
	db         *sql.DB
	fixtures   *repository.FixtureRepository
	standings  *repository.StandingRepository
	matches    *repository.MatchRepository
	scorecards *repository.ScorecardRepository
	ledger     *ledger.Ledger
	registry   *sim.Registry
	logger     zerolog.Logger
}

func NewEngine(
	db *sql.DB,
	fixtures *repository.FixtureRepository,
	standings *repository.StandingRepository,
	matches *repository.MatchRepository,
	scorecards *repository.ScorecardRepository,
	led *ledger.Ledger,
	registry *sim.Registry,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		db:         db,
		fixtures:   fixtures,
		standings:  standings,
		matches:    matches,
		scorecards: scorecards,
		ledger:     led,
		registry:   registry,
		logger:     logger,
	}
}

// Create seeds a tournament: one league fixture per team pair, zeroed
// standings, empty playoff slots filled later by promotion.
func (e *Engine) Create(ctx context.Context, name string, format domain.Format, teamIDs []string) (*domain.Tournament, error) {
	if len(teamIDs) < 2 {
		return nil, fmt.Errorf("tournament needs at least 2 teams, got %d", len(teamIDs))
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fixtures := e.fixtures.WithTx(tx)

	t := &domain.Tournament{Name: name, Format: format}
	if err := fixtures.InsertTournament(ctx, t); err != nil {
		return nil, err
	}

	position := 0
	for i := 0; i < len(teamIDs); i++ {
		for j := i + 1; j < len(teamIDs); j++ {
			position++
			f := &domain.Fixture{
				TournamentID: t.ID,
				Stage:        domain.StageLeague,
				Position:     position,
				TeamAID:      teamIDs[i],
				TeamBID:      teamIDs[j],
			}
			if err := fixtures.Insert(ctx, f); err != nil {
				return nil, err
			}
		}
	}

	if err := e.standings.WithTx(tx).Init(ctx, t.ID, teamIDs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("tournament_id", t.ID).
		Int("teams", len(teamIDs)).
		Int("fixtures", position).
		Msg("tournament created")
	return t, nil
}

// RecordResult applies a completed match to the fixture's standings. The
// standings mutation and the standings_applied flag flip share one
// transaction. League completion then triggers stage promotion.
func (e *Engine) RecordResult(ctx context.Context, fixtureID string, m *domain.Match) error {
	f, err := e.fixtures.Get(ctx, fixtureID)
	if err != nil {
		return fmt.Errorf("failed to load fixture: %w", err)
	}
	if f.StandingsApplied {
		return fmt.Errorf("%w: fixture %s already has standings applied", ErrStandingsInconsistent, fixtureID)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if f.Stage == domain.StageLeague {
		if err := e.shiftStandings(ctx, tx, f.TournamentID, m, 1); err != nil {
			return err
		}
	}

	f.MatchID = m.ID
	f.Status = domain.FixtureCompleted
	f.StandingsApplied = f.Stage == domain.StageLeague
	if err := e.fixtures.WithTx(tx).Update(ctx, f); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	e.logger.Info().
		Str("fixture_id", fixtureID).
		Str("match_id", m.ID).
		Str("stage", string(f.Stage)).
		Msg("fixture result recorded")

	return e.advanceStage(ctx, f.TournamentID)
}

// Resimulate reverses a completed fixture back to Scheduled: standings
// contribution, ledger aggregates, and all persisted match artifacts go in
// one transaction, and match_id is cleared only after every reversal
// succeeded.
func (e *Engine) Resimulate(ctx context.Context, fixtureID string) error {
	f, err := e.fixtures.Get(ctx, fixtureID)
	if err != nil {
		return fmt.Errorf("failed to load fixture: %w", err)
	}
	if f.Status != domain.FixtureCompleted || f.MatchID == "" {
		return fmt.Errorf("%w: %s", ErrFixtureNotCompleted, fixtureID)
	}
	if e.registry.Active(f.MatchID) {
		return fmt.Errorf("%w: %s", sim.ErrSimulationActive, f.MatchID)
	}

	m, err := e.matches.Get(ctx, f.MatchID)
	if err != nil {
		return fmt.Errorf("failed to load match %s: %w", f.MatchID, err)
	}

	// A league fixture must have flags in lockstep with the ledger; a
	// mismatch means a partial earlier transition and is never guessed
	// around.
	if f.Stage == domain.StageLeague && f.StandingsApplied != m.StatsApplied {
		return fmt.Errorf("%w: fixture %s standings_applied=%t but match stats_applied=%t",
			ErrStandingsInconsistent, fixtureID, f.StandingsApplied, m.StatsApplied)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if f.StandingsApplied {
		if err := e.shiftStandings(ctx, tx, f.TournamentID, m, -1); err != nil {
			return err
		}
	}
	if m.StatsApplied {
		if err := e.ledger.ReverseTx(ctx, tx, m.ID); err != nil {
			return err
		}
	}
	if err := e.scorecards.WithTx(tx).DeleteByMatch(ctx, m.ID); err != nil {
		return err
	}
	if err := e.matches.WithTx(tx).DeleteArtifacts(ctx, m.ID); err != nil {
		return err
	}

	f.MatchID = ""
	f.Status = domain.FixtureScheduled
	f.StandingsApplied = false
	if err := e.fixtures.WithTx(tx).Update(ctx, f); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	e.logger.Info().
		Str("fixture_id", fixtureID).
		Str("former_match_id", m.ID).
		Msg("fixture reset for resimulation")
	return nil
}

// shiftStandings applies (sign=1) or reverses (sign=-1) one match's
// contribution to both teams' standings rows.
func (e *Engine) shiftStandings(ctx context.Context, tx *sql.Tx, tournamentID string, m *domain.Match, sign int) error {
	standings := e.standings.WithTx(tx)

	for _, teamID := range []string{m.TeamAID, m.TeamBID} {
		s, err := standings.Get(ctx, tournamentID, teamID)
		if err != nil {
			return err
		}
		shifted := shiftStanding(s, m, teamID, sign)
		if err := standings.Upsert(ctx, shifted); err != nil {
			return err
		}
	}
	return nil
}

// shiftStanding folds one match into a team's standing. Overs are carried
// as legal-ball counts; an all-out innings is charged its full quota of
// balls, per standard NRR rules.
func shiftStanding(s domain.TournamentStanding, m *domain.Match, teamID string, sign int) domain.TournamentStanding {
	var batted, fielded domain.InningsScore
	if m.InningsScores[0].BattingTeamID == teamID {
		batted, fielded = m.InningsScores[0], m.InningsScores[1]
	} else {
		batted, fielded = m.InningsScores[1], m.InningsScores[0]
	}

	fullBalls := m.Format.InningsOvers() * 6
	ballsFaced := batted.LegalBalls
	if batted.Wickets >= 10 {
		ballsFaced = fullBalls
	}
	ballsBowled := fielded.LegalBalls
	if fielded.Wickets >= 10 {
		ballsBowled = fullBalls
	}

	s.Played += sign
	switch {
	case m.WinnerTeamID == teamID:
		s.Won += sign
		s.Points += sign * constants.LeagueWinPoints
	case m.WinnerTeamID == "":
		s.Tied += sign
		s.Points += sign * constants.LeagueTiePoints
	default:
		s.Lost += sign
	}
	s.RunsFor += sign * batted.Runs
	s.BallsFaced += sign * ballsFaced
	s.RunsAgainst += sign * fielded.Runs
	s.BallsBowled += sign * ballsBowled
	return s
}

// SortStandings orders by points descending, then net run rate descending.
func SortStandings(standings []domain.TournamentStanding) {
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Points != standings[j].Points {
			return standings[i].Points > standings[j].Points
		}
		return standings[i].NetRunRate() > standings[j].NetRunRate()
	})
}

// Standings returns the tournament table in rank order.
func (e *Engine) Standings(ctx context.Context, tournamentID string) ([]domain.TournamentStanding, error) {
	standings, err := e.standings.List(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	SortStandings(standings)
	return standings, nil
}

// advanceStage promotes the tournament when a stage completes: league done
// seeds the semi-finals from the standings, semis done fill the final,
// final done closes the tournament.
func (e *Engine) advanceStage(ctx context.Context, tournamentID string) error {
	t, err := e.fixtures.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	fixtures, err := e.fixtures.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}

	switch t.Stage {
	case domain.TournamentLeague:
		if !allCompleted(fixtures, domain.StageLeague) {
			return nil
		}
		return e.seedPlayoffs(ctx, t)
	case domain.TournamentPlayoffs:
		if done, err := e.fillBracket(ctx, t, fixtures); err != nil || !done {
			return err
		}
		if err := e.fixtures.SetTournamentStage(ctx, tournamentID, domain.TournamentDone); err != nil {
			return err
		}
		e.logger.Info().Str("tournament_id", tournamentID).Msg("tournament completed")
	}
	return nil
}

func (e *Engine) seedPlayoffs(ctx context.Context, t *domain.Tournament) error {
	standings, err := e.Standings(ctx, t.ID)
	if err != nil {
		return err
	}
	if len(standings) < constants.PlayoffTeams {
		// Small tournaments jump straight to a final between the top two.
		if len(standings) < 2 {
			return nil
		}
		final := &domain.Fixture{
			TournamentID: t.ID,
			Stage:        domain.StageFinal,
			Position:     1,
			TeamAID:      standings[0].TeamID,
			TeamBID:      standings[1].TeamID,
		}
		if err := e.fixtures.Insert(ctx, final); err != nil {
			return err
		}
		return e.fixtures.SetTournamentStage(ctx, t.ID, domain.TournamentPlayoffs)
	}

	// 1v4 and 2v3, winners meet in the final.
	semis := []*domain.Fixture{
		{TournamentID: t.ID, Stage: domain.StageSemi, Position: 1, TeamAID: standings[0].TeamID, TeamBID: standings[3].TeamID},
		{TournamentID: t.ID, Stage: domain.StageSemi, Position: 2, TeamAID: standings[1].TeamID, TeamBID: standings[2].TeamID},
	}
	for _, f := range semis {
		if err := e.fixtures.Insert(ctx, f); err != nil {
			return err
		}
	}
	final := &domain.Fixture{TournamentID: t.ID, Stage: domain.StageFinal, Position: 1}
	if err := e.fixtures.Insert(ctx, final); err != nil {
		return err
	}

	e.logger.Info().Str("tournament_id", t.ID).Msg("league complete, playoffs seeded")
	return e.fixtures.SetTournamentStage(ctx, t.ID, domain.TournamentPlayoffs)
}

// fillBracket propagates semi winners into the final. Returns true when the
// final itself has completed.
func (e *Engine) fillBracket(ctx context.Context, t *domain.Tournament, fixtures []domain.Fixture) (bool, error) {
	var final *domain.Fixture
	winners := make(map[int]string)

	for i := range fixtures {
		f := &fixtures[i]
		switch f.Stage {
		case domain.StageSemi:
			if f.Status == domain.FixtureCompleted && f.MatchID != "" {
				m, err := e.matches.Get(ctx, f.MatchID)
				if err != nil {
					return false, err
				}
				winners[f.Position] = m.WinnerTeamID
			}
		case domain.StageFinal:
			final = f
		}
	}

	if final == nil {
		return false, nil
	}
	if final.Status == domain.FixtureCompleted {
		return true, nil
	}
	if final.TeamAID == "" && len(winners) == 2 {
		final.TeamAID = winners[1]
		final.TeamBID = winners[2]
		if err := e.fixtures.Update(ctx, final); err != nil {
			return false, err
		}
		e.logger.Info().Str("tournament_id", t.ID).Msg("final fixture filled from semi winners")
	}
	return false, nil
}

func allCompleted(fixtures []domain.Fixture, stage domain.Stage) bool {
	for _, f := range fixtures {
		if f.Stage == stage && f.Status != domain.FixtureCompleted {
			return false
		}
	}
	return true
}

// Reset zeroes the standings and replays every applied league fixture from
// its persisted match summary. The only full-recompute path.
func (e *Engine) Reset(ctx context.Context, tournamentID string) error {
	fixtures, err := e.fixtures.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := e.standings.WithTx(tx).Reset(ctx, tournamentID); err != nil {
		return err
	}
	for _, f := range fixtures {
		if f.Stage != domain.StageLeague || !f.StandingsApplied || f.MatchID == "" {
			continue
		}
		m, err := e.matches.WithTx(tx).Get(ctx, f.MatchID)
		if err != nil {
			return err
		}
		if err := e.shiftStandings(ctx, tx, tournamentID, m, 1); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	e.logger.Info().Str("tournament_id", tournamentID).Msg("standings fully recomputed")
	return nil
}
