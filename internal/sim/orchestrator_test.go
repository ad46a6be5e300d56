package sim

import (
	"context"
	"testing"

	"cricket-sim/internal/commentary"
	"cricket-sim/internal/domain"
	"cricket-sim/internal/provider"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns pre-built chunks in order and records every
// request it receives.
type scriptedProvider struct {
	chunks   []domain.OverChunk
	requests []provider.ChunkRequest
	errs     []error
}

func (p *scriptedProvider) NextChunk(_ context.Context, req provider.ChunkRequest) (domain.OverChunk, error) {
	p.requests = append(p.requests, req)
	i := len(p.requests) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return domain.OverChunk{}, p.errs[i]
	}
	if len(p.chunks) == 0 {
		return domain.OverChunk{}, provider.ErrMalformedResponse
	}
	chunk := p.chunks[0]
	if len(p.chunks) > 1 {
		p.chunks = p.chunks[1:]
	}
	return chunk, nil
}

func testEngine(t *testing.T) *commentary.Engine {
	t.Helper()
	catalog, err := commentary.LoadCatalog()
	require.NoError(t, err)
	return commentary.NewEngine(catalog, 1)
}

func testOrchestrator(t *testing.T, prov Provider) *Orchestrator {
	state := domain.NewMatchState(
		"m1", domain.FormatT20, domain.MasterScenario{Text: "a tense chase"},
		"team-a", "team-b",
		[]string{"a1", "a2", "a3"},
		[]string{"b1", "b2", "b3"},
	)
	names := map[string]string{
		"a1": "Arlo", "a2": "Asha", "a3": "Avery",
		"b1": "Bran", "b2": "Bea", "b3": "Bodhi",
	}
	teams := map[string]string{"team-a": "Alphas", "team-b": "Bravos"}
	return NewOrchestrator(state, prov, testEngine(t), names, teams, zerolog.Nop())
}

func over(bowlerID string, events ...domain.BallEvent) domain.ProviderOver {
	o := domain.ProviderOver{BowlerID: bowlerID}
	for _, ev := range events {
		o.Balls = append(o.Balls, domain.ProviderBall{Event: ev})
	}
	return o
}

func dots(n int) []domain.BallEvent {
	out := make([]domain.BallEvent, n)
	for i := range out {
		out[i] = domain.BallEvent{Kind: domain.BallRuns}
	}
	return out
}

// wicketsOver is an over that removes both remaining wickets of a 3-batter
// side, ending the innings mid-over.
func wicketsOver(bowlerID string) domain.ProviderOver {
	return over(bowlerID,
		domain.BallEvent{Kind: domain.BallRuns, Runs: 4},
		domain.BallEvent{Kind: domain.BallWicket, Wicket: domain.WicketBowled},
		domain.BallEvent{Kind: domain.BallWicket, Wicket: domain.WicketCaught},
		domain.BallEvent{Kind: domain.BallRuns},
		domain.BallEvent{Kind: domain.BallRuns},
		domain.BallEvent{Kind: domain.BallRuns},
	)
}

func TestAdvanceChunk_AppliesAcceptedChunk(t *testing.T) {
	prov := &scriptedProvider{chunks: []domain.OverChunk{
		{Overs: []domain.ProviderOver{over("b1", dots(6)...)}},
	}}
	o := testOrchestrator(t, prov)

	require.NoError(t, o.AdvanceChunk(context.Background()))

	inn := o.State().Current()
	assert.Equal(t, 6, inn.LegalBalls)
	assert.Equal(t, "b1", inn.LastBowlerID)
	assert.Len(t, o.Balls(), 6)
	for _, b := range o.Balls() {
		assert.NotEmpty(t, b.Commentary)
	}
}

func TestAdvanceChunk_RejectionFeedsConstraintBack(t *testing.T) {
	bad := domain.OverChunk{Overs: []domain.ProviderOver{
		over("b1", dots(6)...), over("b1", dots(6)...), // back to back
	}}
	good := domain.OverChunk{Overs: []domain.ProviderOver{
		over("b1", dots(6)...), over("b2", dots(6)...),
	}}
	prov := &scriptedProvider{chunks: []domain.OverChunk{bad, good}}
	o := testOrchestrator(t, prov)

	require.NoError(t, o.AdvanceChunk(context.Background()))

	require.Len(t, prov.requests, 2)
	assert.Empty(t, prov.requests[0].Constraints)
	require.Len(t, prov.requests[1].Constraints, 1)
	assert.Contains(t, prov.requests[1].Constraints[0], string(ConsecutiveOverViolation))
	assert.Equal(t, 12, o.State().Current().LegalBalls, "only the corrected chunk applied")
}

func TestAdvanceChunk_RetryCeilingIsTerminal(t *testing.T) {
	bad := domain.OverChunk{Overs: []domain.ProviderOver{
		over("b1", dots(6)...), over("b1", dots(6)...),
	}}
	prov := &scriptedProvider{chunks: []domain.OverChunk{bad}}
	o := testOrchestrator(t, prov)

	err := o.AdvanceChunk(context.Background())
	require.ErrorIs(t, err, ErrRetryCeiling)
	assert.Equal(t, 0, o.State().Current().LegalBalls, "nothing applied from rejected chunks")
}

func TestAdvanceChunk_RecoverableProviderErrorRetries(t *testing.T) {
	good := domain.OverChunk{Overs: []domain.ProviderOver{over("b1", dots(6)...)}}
	prov := &scriptedProvider{
		chunks: []domain.OverChunk{good},
		errs:   []error{provider.ErrTimeout},
	}
	o := testOrchestrator(t, prov)

	require.NoError(t, o.AdvanceChunk(context.Background()))
	assert.Len(t, prov.requests, 2)
}

func TestRunToCompletion_PlaysBothInnings(t *testing.T) {
	prov := &scriptedProvider{chunks: []domain.OverChunk{
		{Overs: []domain.ProviderOver{wicketsOver("b1")}},
		{Overs: []domain.ProviderOver{wicketsOver("a1")}},
	}}
	o := testOrchestrator(t, prov)

	result, err := o.RunToCompletion(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, o.State().Finished)
	assert.Equal(t, domain.MatchCompleted, result.Match.Status)

	// Both sides made 4 all out, so the chase falls short with equal
	// scores: a tie.
	assert.Equal(t, 4, result.Match.InningsScores[0].Runs)
	assert.Equal(t, 4, result.Match.InningsScores[1].Runs)
	assert.Equal(t, "", result.Match.WinnerTeamID)
	assert.Equal(t, "match tied", result.Match.ResultText)

	// The innings ends at the second wicket; trailing scripted balls are
	// discarded.
	assert.Equal(t, 3, result.Match.InningsScores[0].LegalBalls)

	// The non-striker never faces a ball and has no scorecard row.
	assert.Len(t, result.Batting, 4)
	assert.Len(t, result.Bowling, 2)
	assert.NotEmpty(t, result.Partnerships)
}

func TestRunToCompletion_ChaseStopsAtTarget(t *testing.T) {
	firstInnings := domain.OverChunk{Overs: []domain.ProviderOver{wicketsOver("b1")}}
	// Chase of 5: a boundary then a single gets there in two balls.
	chase := domain.OverChunk{Overs: []domain.ProviderOver{over("a1",
		domain.BallEvent{Kind: domain.BallRuns, Runs: 4},
		domain.BallEvent{Kind: domain.BallRuns, Runs: 1},
		domain.BallEvent{Kind: domain.BallRuns},
		domain.BallEvent{Kind: domain.BallRuns},
		domain.BallEvent{Kind: domain.BallRuns},
		domain.BallEvent{Kind: domain.BallRuns},
	)}}
	prov := &scriptedProvider{chunks: []domain.OverChunk{firstInnings, chase}}
	o := testOrchestrator(t, prov)

	result, err := o.RunToCompletion(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "team-b", result.Match.WinnerTeamID)
	assert.Equal(t, 5, result.Match.InningsScores[1].Runs)
	assert.Equal(t, 2, result.Match.InningsScores[1].LegalBalls, "chase stops the moment the target falls")
}

func TestAdvanceChunk_FinishedMatch(t *testing.T) {
	prov := &scriptedProvider{}
	o := testOrchestrator(t, prov)
	o.State().Finished = true

	assert.ErrorIs(t, o.AdvanceChunk(context.Background()), ErrMatchFinished)
}
