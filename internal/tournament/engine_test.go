package tournament

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"cricket-sim/internal/database"
	"cricket-sim/internal/domain"
	"cricket-sim/internal/ledger"
	"cricket-sim/internal/repository"
	"cricket-sim/internal/sim"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	db         *sql.DB
	fixtures   *repository.FixtureRepository
	standings  *repository.StandingRepository
	matches    *repository.MatchRepository
	scorecards *repository.ScorecardRepository
	aggregates *repository.AggregateRepository
	ledger     *ledger.Ledger
	registry   *sim.Registry
	engine     *Engine
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	logger := zerolog.Nop()
	f := &engineFixture{
		db:         db,
		fixtures:   repository.NewFixtureRepository(db, logger),
		standings:  repository.NewStandingRepository(db, logger),
		matches:    repository.NewMatchRepository(db, logger),
		scorecards: repository.NewScorecardRepository(db, logger),
		aggregates: repository.NewAggregateRepository(db, logger),
		registry:   sim.NewRegistry(),
	}
	f.ledger = ledger.New(db, f.matches, f.scorecards, f.aggregates, logger)
	f.engine = NewEngine(db, f.fixtures, f.standings, f.matches, f.scorecards, f.ledger, f.registry, logger)
	return f
}

// completeFixture fabricates a finished match for the fixture, applies the
// ledger, and records the result.
func (f *engineFixture) completeFixture(t *testing.T, fx *domain.Fixture, m *domain.Match) {
	t.Helper()
	ctx := context.Background()

	m.TournamentID = fx.TournamentID
	m.FixtureID = fx.ID
	m.TeamAID = fx.TeamAID
	m.TeamBID = fx.TeamBID
	m.Format = domain.FormatT20
	m.Status = domain.MatchCompleted

	require.NoError(t, f.matches.Insert(ctx, m))
	require.NoError(t, f.matches.Finalize(ctx, m))
	require.NoError(t, f.scorecards.InsertBatting(ctx, []domain.BattingScorecard{
		{MatchID: m.ID, PlayerID: m.TeamAID + "-bat", TeamID: m.TeamAID, Innings: 1, Runs: m.InningsScores[0].Runs, Balls: 60, Out: true},
	}))
	require.NoError(t, f.ledger.Apply(ctx, m.ID))
	require.NoError(t, f.engine.RecordResult(ctx, fx.ID, m))
}

func scores(teamA string, runsA, wktsA, ballsA int, teamB string, runsB, wktsB, ballsB int) [2]domain.InningsScore {
	return [2]domain.InningsScore{
		{BattingTeamID: teamA, Runs: runsA, Wickets: wktsA, LegalBalls: ballsA},
		{BattingTeamID: teamB, Runs: runsB, Wickets: wktsB, LegalBalls: ballsB},
	}
}

func TestCreate_SeedsLeagueFixturesAndStandings(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Test Cup", domain.FormatT20, []string{"t1", "t2", "t3"})
	require.NoError(t, err)
	assert.Equal(t, domain.TournamentLeague, tour.Stage)

	fixtures, err := f.fixtures.ListByTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, fixtures, 3, "round robin for 3 teams")
	for _, fx := range fixtures {
		assert.Equal(t, domain.StageLeague, fx.Stage)
		assert.Equal(t, domain.FixtureScheduled, fx.Status)
	}

	standings, err := f.standings.List(ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, standings, 3)
	for _, s := range standings {
		assert.Zero(t, s.Played)
		assert.Zero(t, s.Points)
	}
}

func TestRecordResult_UpdatesStandingsAndNRR(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, err := f.fixtures.ListByTournament(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, fixtures, 1)

	m := &domain.Match{
		ID:            "m1",
		WinnerTeamID:  "t1",
		ResultText:    "t1 won by 30 run(s)",
		InningsScores: scores("t1", 180, 4, 120, "t2", 150, 7, 120),
	}
	f.completeFixture(t, &fixtures[0], m)

	standings, err := f.engine.Standings(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, standings, 2)

	winner, loser := standings[0], standings[1]
	assert.Equal(t, "t1", winner.TeamID)
	assert.Equal(t, 2, winner.Points)
	assert.Equal(t, 1, winner.Won)
	assert.InDelta(t, 1.5, winner.NetRunRate(), 1e-9)

	assert.Equal(t, "t2", loser.TeamID)
	assert.Equal(t, 0, loser.Points)
	assert.Equal(t, 1, loser.Lost)
	assert.InDelta(t, -1.5, loser.NetRunRate(), 1e-9)

	fx, err := f.fixtures.Get(ctx, fixtures[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FixtureCompleted, fx.Status)
	assert.True(t, fx.StandingsApplied)
}

func TestRecordResult_TieSplitsPoints(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, _ := f.fixtures.ListByTournament(ctx, tour.ID)

	m := &domain.Match{
		ID:            "m1",
		WinnerTeamID:  "",
		ResultText:    "match tied",
		InningsScores: scores("t1", 160, 5, 120, "t2", 160, 8, 120),
	}
	f.completeFixture(t, &fixtures[0], m)

	standings, err := f.engine.Standings(ctx, tour.ID)
	require.NoError(t, err)
	for _, s := range standings {
		assert.Equal(t, 1, s.Points)
		assert.Equal(t, 1, s.Tied)
	}
}

func TestShiftStanding_AllOutChargedFullQuota(t *testing.T) {
	m := &domain.Match{
		TeamAID:      "t1",
		TeamBID:      "t2",
		Format:       domain.FormatT20,
		WinnerTeamID: "t1",
		// t2 bowled out in 15 overs chasing.
		InningsScores: scores("t1", 180, 4, 120, "t2", 120, 10, 90),
	}

	s := shiftStanding(domain.TournamentStanding{TeamID: "t2"}, m, "t2", 1)

	assert.Equal(t, 120, s.BallsFaced, "all out counts as the full 20 overs")
	assert.Equal(t, 120, s.BallsBowled)
	assert.Equal(t, 120, s.RunsFor)
	assert.Equal(t, 180, s.RunsAgainst)
	assert.Equal(t, 1, s.Lost)
}

func TestShiftStanding_ReverseIsInverse(t *testing.T) {
	m := &domain.Match{
		TeamAID:       "t1",
		TeamBID:       "t2",
		Format:        domain.FormatT20,
		WinnerTeamID:  "t1",
		InningsScores: scores("t1", 180, 4, 120, "t2", 150, 7, 120),
	}

	before := domain.TournamentStanding{
		TeamID: "t1", Played: 3, Won: 2, Lost: 1, Points: 4,
		RunsFor: 500, BallsFaced: 360, RunsAgainst: 450, BallsBowled: 360,
	}
	after := shiftStanding(shiftStanding(before, m, "t1", 1), m, "t1", -1)
	assert.Equal(t, before, after)
}

func TestSortStandings_PointsThenNRR(t *testing.T) {
	// Two teams on equal points; the 180-for / 150-against side must rank
	// above the 170-for / 160-against side.
	standings := []domain.TournamentStanding{
		{TeamID: "t2", Points: 2, RunsFor: 170, BallsFaced: 120, RunsAgainst: 160, BallsBowled: 120},
		{TeamID: "t3", Points: 0},
		{TeamID: "t1", Points: 2, RunsFor: 180, BallsFaced: 120, RunsAgainst: 150, BallsBowled: 120},
	}

	SortStandings(standings)

	assert.Equal(t, "t1", standings[0].TeamID)
	assert.Equal(t, "t2", standings[1].TeamID)
	assert.Equal(t, "t3", standings[2].TeamID)
}

func TestLeagueCompletion_SeedsFinalForTwoTeams(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, _ := f.fixtures.ListByTournament(ctx, tour.ID)

	m := &domain.Match{
		ID:            "m1",
		WinnerTeamID:  "t1",
		InningsScores: scores("t1", 180, 4, 120, "t2", 150, 7, 120),
	}
	f.completeFixture(t, &fixtures[0], m)

	tour, err = f.fixtures.GetTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TournamentPlayoffs, tour.Stage)

	fixtures, err = f.fixtures.ListByTournament(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, fixtures, 2)

	var final *domain.Fixture
	for i := range fixtures {
		if fixtures[i].Stage == domain.StageFinal {
			final = &fixtures[i]
		}
	}
	require.NotNil(t, final)
	assert.Equal(t, "t1", final.TeamAID, "table topper takes slot A")
	assert.Equal(t, "t2", final.TeamBID)
}

func TestResimulate_ReversesEverything(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, _ := f.fixtures.ListByTournament(ctx, tour.ID)

	m := &domain.Match{
		ID:            "m1",
		WinnerTeamID:  "t1",
		InningsScores: scores("t1", 180, 4, 120, "t2", 150, 7, 120),
	}
	f.completeFixture(t, &fixtures[0], m)

	require.NoError(t, f.engine.Resimulate(ctx, fixtures[0].ID))

	fx, err := f.fixtures.Get(ctx, fixtures[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FixtureScheduled, fx.Status)
	assert.Empty(t, fx.MatchID)
	assert.False(t, fx.StandingsApplied)

	standings, err := f.standings.List(ctx, tour.ID)
	require.NoError(t, err)
	for _, s := range standings {
		assert.Zero(t, s.Played)
		assert.Zero(t, s.Points)
		assert.Zero(t, s.RunsFor)
	}

	// The match and its artifacts are gone.
	_, err = f.matches.Get(ctx, "m1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	batting, err := f.scorecards.GetBattingByMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, batting)

	// The batter's counting stats are reversed too.
	agg, err := f.aggregates.Get(ctx, "t1-bat")
	require.NoError(t, err)
	assert.Zero(t, agg.Runs)
	assert.Zero(t, agg.Matches)
}

func TestResimulate_ConcurrentSecondRequestRejected(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, _ := f.fixtures.ListByTournament(ctx, tour.ID)

	m := &domain.Match{
		ID:            "m1",
		WinnerTeamID:  "t1",
		InningsScores: scores("t1", 180, 4, 120, "t2", 150, 7, 120),
	}
	f.completeFixture(t, &fixtures[0], m)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.engine.Resimulate(ctx, fixtures[0].ID)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, e := range errs {
		if e == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of the racing requests wins")

	// The reversal ran once, not twice: standings are back at zero rather
	// than negative, the fixture is open again, the match is gone.
	standings, err := f.standings.List(ctx, tour.ID)
	require.NoError(t, err)
	for _, s := range standings {
		assert.Zero(t, s.Played)
		assert.Zero(t, s.Points)
		assert.Zero(t, s.RunsFor)
		assert.Zero(t, s.BallsFaced)
	}

	fx, err := f.fixtures.Get(ctx, fixtures[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FixtureScheduled, fx.Status)
	assert.Empty(t, fx.MatchID)

	_, err = f.matches.Get(ctx, "m1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestResimulate_RejectsActiveSimulation(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, _ := f.fixtures.ListByTournament(ctx, tour.ID)

	m := &domain.Match{
		ID:            "m1",
		WinnerTeamID:  "t1",
		InningsScores: scores("t1", 180, 4, 120, "t2", 150, 7, 120),
	}
	f.completeFixture(t, &fixtures[0], m)

	require.NoError(t, f.registry.Add("m1", &sim.Orchestrator{}))
	assert.ErrorIs(t, f.engine.Resimulate(ctx, fixtures[0].ID), sim.ErrSimulationActive)
}

func TestResimulate_RejectsScheduledFixture(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, _ := f.fixtures.ListByTournament(ctx, tour.ID)

	assert.ErrorIs(t, f.engine.Resimulate(ctx, fixtures[0].ID), ErrFixtureNotCompleted)
}

func TestResimulate_DetectsFlagMismatch(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, _ := f.fixtures.ListByTournament(ctx, tour.ID)

	m := &domain.Match{
		ID:            "m1",
		WinnerTeamID:  "t1",
		InningsScores: scores("t1", 180, 4, 120, "t2", 150, 7, 120),
	}
	f.completeFixture(t, &fixtures[0], m)

	// Force the inconsistency a crashed half-transition would leave.
	require.NoError(t, f.matches.SetStatsApplied(ctx, "m1", false))

	assert.ErrorIs(t, f.engine.Resimulate(ctx, fixtures[0].ID), ErrStandingsInconsistent)
}

func TestReset_RecomputesFromAppliedFixtures(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	tour, err := f.engine.Create(ctx, "Cup", domain.FormatT20, []string{"t1", "t2"})
	require.NoError(t, err)
	fixtures, _ := f.fixtures.ListByTournament(ctx, tour.ID)

	m := &domain.Match{
		ID:            "m1",
		WinnerTeamID:  "t1",
		InningsScores: scores("t1", 180, 4, 120, "t2", 150, 7, 120),
	}
	f.completeFixture(t, &fixtures[0], m)

	// Corrupt a standings row, then rebuild.
	s, err := f.standings.Get(ctx, tour.ID, "t1")
	require.NoError(t, err)
	s.Points = 99
	require.NoError(t, f.standings.Upsert(ctx, s))

	require.NoError(t, f.engine.Reset(ctx, tour.ID))

	s, err = f.standings.Get(ctx, tour.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Points)
	assert.Equal(t, 1, s.Played)
}
