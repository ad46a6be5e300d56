package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cricket-sim/internal/commentary"
	"cricket-sim/internal/constants"
	"cricket-sim/internal/domain"
	"cricket-sim/internal/metrics"
	"cricket-sim/internal/provider"

	"github.com/rs/zerolog"
)

// ErrRetryCeiling is terminal for the match: the provider could not produce
// an acceptable chunk within the retry budget. Nothing is persisted.
var ErrRetryCeiling = errors.New("provider retry ceiling exceeded")

// ErrMatchFinished is returned when a chunk is requested for a match whose
// simulation has already completed.
var ErrMatchFinished = errors.New("match simulation already finished")

// Provider is the external generative outcome source.
type Provider interface {
	NextChunk(ctx context.Context, req provider.ChunkRequest) (domain.OverChunk, error)
}

// Orchestrator drives one match to completion in bounded chunks. It owns the
// match state exclusively; all mutation is strictly ball by ball. It never
// writes aggregates or standings.
type Orchestrator struct {
	matchID    string
	state      *domain.MatchState
	provider   Provider
	commentary *commentary.Engine
	logger     zerolog.Logger

	playerNames map[string]string
	teamNames   map[string]string

	balls []domain.BallOutcome
}

func NewOrchestrator(
	state *domain.MatchState,
	prov Provider,
	engine *commentary.Engine,
	playerNames map[string]string,
	teamNames map[string]string,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		matchID:     state.MatchID,
		state:       state,
		provider:    prov,
		commentary:  engine,
		playerNames: playerNames,
		teamNames:   teamNames,
		logger:      logger.With().Str("match_id", state.MatchID).Logger(),
	}
}

// State exposes the running match state for read-only callers.
func (o *Orchestrator) State() *domain.MatchState {
	return o.state
}

// Balls returns the outcomes recorded so far, in delivery order.
func (o *Orchestrator) Balls() []domain.BallOutcome {
	return o.balls
}

// RunToCompletion advances chunk by chunk until the match finishes.
func (o *Orchestrator) RunToCompletion(ctx context.Context) (*domain.MatchResult, error) {
	start := time.Now()
	for !o.state.Finished {
		if err := o.AdvanceChunk(ctx); err != nil {
			return nil, err
		}
	}
	metrics.SimulationDuration.Observe(time.Since(start).Seconds())
	return o.BuildResult(), nil
}

// AdvanceChunk requests, validates and applies one provider chunk. Rejected
// chunks are re-requested with the rejection reason as added constraint
// text, up to the retry ceiling.
func (o *Orchestrator) AdvanceChunk(ctx context.Context) error {
	if o.state.Finished {
		return ErrMatchFinished
	}

	inn := o.state.Current()
	req := provider.ChunkRequest{
		Scenario:        o.state.Scenario.Text,
		Match:           o.seed(inn),
		EligibleBowlers: inn.EligibleBowlers(o.state.Format),
		LastBowlerID:    inn.LastBowlerID,
		MaxOvers:        o.chunkOvers(inn),
	}

	var lastErr error
	for attempt := 0; attempt <= constants.ProviderRetryCeiling; attempt++ {
		if attempt > 0 {
			metrics.ProviderRetries.Inc()
		}

		chunkCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		chunk, err := o.provider.NextChunk(chunkCtx, req)
		cancel()
		if err != nil {
			if errors.Is(err, provider.ErrTimeout) || errors.Is(err, provider.ErrMalformedResponse) {
				o.logger.Warn().Err(err).Int("attempt", attempt).Msg("recoverable provider failure")
				lastErr = err
				continue
			}
			return fmt.Errorf("provider chunk request failed: %w", err)
		}

		if err := ValidateChunk(o.state.Format, inn, chunk); err != nil {
			var rejection *ChunkRejection
			if errors.As(err, &rejection) {
				metrics.ChunksRejected.WithLabelValues(string(rejection.Reason)).Inc()
				o.logger.Warn().
					Str("reason", string(rejection.Reason)).
					Str("detail", rejection.Detail).
					Int("attempt", attempt).
					Msg("chunk rejected")
				req.Constraints = append(req.Constraints, rejection.Error())
				lastErr = rejection
				continue
			}
			return err
		}

		o.applyChunk(chunk)
		return nil
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryCeiling, constants.ProviderRetryCeiling+1, lastErr)
}

func (o *Orchestrator) seed(inn *domain.InningsState) provider.MatchSeed {
	return provider.MatchSeed{
		Innings:       inn.Number,
		BattingTeamID: inn.BattingTeamID,
		BowlingTeamID: inn.BowlingTeamID,
		Runs:          inn.Runs,
		Wickets:       inn.Wickets,
		LegalBalls:    inn.LegalBalls,
		Target:        inn.Target,
		StrikerID:     inn.StrikerID,
		NonStrikerID:  inn.NonStrikerID,
		OversLimit:    o.state.Format.InningsOvers(),
	}
}

func (o *Orchestrator) chunkOvers(inn *domain.InningsState) int {
	left := o.state.Format.InningsOvers() - inn.LegalBalls/6
	if left > constants.ChunkMaxOvers {
		return constants.ChunkMaxOvers
	}
	return left
}

// applyChunk folds the accepted chunk into the state ball by ball.
// Termination conditions are checked after every delivery, so a chunk can
// end an innings (or the match) part-way through; the remainder is
// discarded.
func (o *Orchestrator) applyChunk(chunk domain.OverChunk) {
	for _, over := range chunk.Overs {
		inn := o.state.Current()
		if inn.Done(o.state.Format) {
			break
		}
		inn.BeginOver(over.BowlerID)

		for _, ball := range over.Balls {
			o.applyBall(inn, over.BowlerID, ball)
			if inn.Done(o.state.Format) {
				break
			}
		}

		if inn.Done(o.state.Format) {
			if inn.Number == 1 {
				o.logger.Info().
					Int("runs", inn.Runs).
					Int("wickets", inn.Wickets).
					Msg("first innings closed")
				o.state.StartSecondInnings()
				break // innings 2 needs a fresh chunk
			}
			o.state.Finish()
			o.logger.Info().Str("result", o.state.ResultText).Msg("match finished")
			break
		}
	}
}

func (o *Orchestrator) applyBall(inn *domain.InningsState, bowlerID string, ball domain.ProviderBall) {
	overNo := inn.LegalBalls / 6
	ballInOver := inn.BallInOver

	strikerID := inn.ApplyBall(ball.Event)

	text := o.commentary.Render(commentary.BallContext{
		Event:            ball.Event,
		BatterName:       o.playerNames[strikerID],
		BowlerName:       o.playerNames[bowlerID],
		BattingTeamName:  o.teamNames[inn.BattingTeamID],
		FieldingTeamName: o.teamNames[inn.BowlingTeamID],
		Hint:             ball.CommentaryHint,
		BatterRuns:       inn.Batters[strikerID].Runs,
		PartnershipRuns:  inn.Partnership.Runs,
		WicketsInWindow:  inn.WicketsInWindow(constants.CollapseWindow),
	})

	o.balls = append(o.balls, domain.BallOutcome{
		MatchID:    o.matchID,
		Innings:    inn.Number,
		Sequence:   inn.DeliverySeq,
		Over:       overNo,
		BallInOver: ballInOver,
		BatterID:   strikerID,
		BowlerID:   bowlerID,
		Event:      ball.Event,
		Commentary: text,
		CreatedAt:  time.Now(),
	})
}

// BuildResult assembles the immutable match record once the state is final.
func (o *Orchestrator) BuildResult() *domain.MatchResult {
	if !o.state.Finished {
		return nil
	}

	result := &domain.MatchResult{Balls: o.balls}
	match := domain.Match{
		ID:           o.matchID,
		TeamAID:      o.state.TeamAID,
		TeamBID:      o.state.TeamBID,
		Format:       o.state.Format,
		Scenario:     o.state.Scenario,
		Status:       domain.MatchCompleted,
		WinnerTeamID: o.state.WinnerID,
		ResultText:   o.state.ResultText,
	}

	for i, inn := range o.state.Innings {
		match.InningsScores[i] = domain.InningsScore{
			BattingTeamID: inn.BattingTeamID,
			Runs:          inn.Runs,
			Wickets:       inn.Wickets,
			LegalBalls:    inn.LegalBalls,
		}

		for _, playerID := range inn.BattingOrder {
			b, ok := inn.Batters[playerID]
			if !ok {
				continue // did not bat
			}
			result.Batting = append(result.Batting, domain.BattingScorecard{
				MatchID:   o.matchID,
				PlayerID:  b.PlayerID,
				TeamID:    inn.BattingTeamID,
				Innings:   inn.Number,
				Position:  b.Position,
				Runs:      b.Runs,
				Balls:     b.Balls,
				Fours:     b.Fours,
				Sixes:     b.Sixes,
				Out:       b.Out,
				Dismissal: b.Dismissal,
			})
		}
		for _, playerID := range inn.BowlingOrder {
			b, ok := inn.Bowlers[playerID]
			if !ok {
				continue // did not bowl
			}
			result.Bowling = append(result.Bowling, domain.BowlingScorecard{
				MatchID:      o.matchID,
				PlayerID:     b.PlayerID,
				TeamID:       inn.BowlingTeamID,
				Innings:      inn.Number,
				BallsBowled:  b.Balls,
				RunsConceded: b.RunsConceded,
				Wickets:      b.Wickets,
				Maidens:      b.Maidens,
			})
		}
		for _, p := range inn.Partnerships {
			p.MatchID = o.matchID
			result.Partnerships = append(result.Partnerships, p)
		}
	}

	result.Match = match
	return result
}
