package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cricket-sim/internal/config"
	"cricket-sim/internal/constants"
	"cricket-sim/internal/domain"

	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

var (
	// ErrTimeout signals the provider did not answer within the per-chunk
	// deadline. Recoverable up to the orchestrator's retry ceiling.
	ErrTimeout = errors.New("provider timeout")

	// ErrMalformedResponse signals a response that could not be decoded
	// into a chunk. Recoverable up to the retry ceiling.
	ErrMalformedResponse = errors.New("provider returned malformed response")
)

// OutcomeClient talks to the external generative outcome provider.
type OutcomeClient struct {
	baseURL string
	apiKey  string
	client  *fasthttp.Client
}

func NewOutcomeClient(cfg *config.Config) *OutcomeClient {
	return &OutcomeClient{
		baseURL: cfg.ProviderURL,
		apiKey:  cfg.ProviderAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// ChunkRequest seeds the provider with everything it needs to generate the
// next batch of overs: the scenario, the running match situation, the
// bowlers that may legally bowl, and any rejection feedback from a previous
// attempt.
type ChunkRequest struct {
	Scenario        string    `json:"scenario"`
	Match           MatchSeed `json:"match"`
	EligibleBowlers []string  `json:"eligible_bowlers"`
	LastBowlerID    string    `json:"last_bowler_id"`
	MaxOvers        int       `json:"max_overs"`
	Constraints     []string  `json:"constraints,omitempty"`
}

// MatchSeed is the compact running-state summary sent with every request.
type MatchSeed struct {
	Innings       int    `json:"innings"`
	BattingTeamID string `json:"batting_team_id"`
	BowlingTeamID string `json:"bowling_team_id"`
	Runs          int    `json:"runs"`
	Wickets       int    `json:"wickets"`
	LegalBalls    int    `json:"legal_balls"`
	Target        int    `json:"target,omitempty"`
	StrikerID     string `json:"striker_id"`
	NonStrikerID  string `json:"non_striker_id"`
	OversLimit    int    `json:"overs_limit"`
}

type chunkResponse struct {
	Overs []struct {
		BowlerID string `json:"bowler_id"`
		Balls    []struct {
			Outcome    string `json:"outcome"`
			Runs       int    `json:"runs"`
			WicketType string `json:"wicket_type,omitempty"`
			Commentary string `json:"commentary,omitempty"`
		} `json:"balls"`
	} `json:"overs"`
}

type scenarioRequest struct {
	Scenario string `json:"scenario"`
	Format   string `json:"format"`
}

type scenarioResponse struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// NextChunk asks the provider for up to req.MaxOvers overs of play.
func (c *OutcomeClient) NextChunk(ctx context.Context, req ChunkRequest) (domain.OverChunk, error) {
	resp, err := doRequest[chunkResponse](ctx, c, "/v1/chunks", req)
	if err != nil {
		return domain.OverChunk{}, err
	}
	return decodeChunk(resp)
}

// ValidateScenario scores a master scenario on the provider's 0-10 scale.
func (c *OutcomeClient) ValidateScenario(ctx context.Context, scenario string, format domain.Format) (domain.MasterScenario, error) {
	resp, err := doRequest[scenarioResponse](ctx, c, "/v1/scenarios/validate", scenarioRequest{
		Scenario: scenario,
		Format:   string(format),
	})
	if err != nil {
		return domain.MasterScenario{}, err
	}
	if resp.Score < 0 || resp.Score > 10 {
		return domain.MasterScenario{}, fmt.Errorf("%w: scenario score %d out of range", ErrMalformedResponse, resp.Score)
	}
	return domain.MasterScenario{
		Text:     scenario,
		Score:    resp.Score,
		Valid:    resp.Score >= constants.ScenarioMinScore,
		Feedback: resp.Feedback,
	}, nil
}

func doRequest[T any](ctx context.Context, client *OutcomeClient, path string, payload any) (*T, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	var result T
	backoff := retry.WithMaxRetries(constants.TransportRetryAttempts, retry.NewFibonacci(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(client.baseURL + path)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.Header.Set("Authorization", client.apiKey)
		req.SetBody(body)

		var doErr error
		if deadline, ok := ctx.Deadline(); ok {
			doErr = client.client.DoDeadline(req, resp, deadline)
		} else {
			doErr = client.client.Do(req, resp)
		}
		if doErr != nil {
			if errors.Is(doErr, fasthttp.ErrTimeout) {
				return fmt.Errorf("%w: %s", ErrTimeout, path)
			}
			return retry.RetryableError(doErr)
		}

		if resp.StatusCode() >= fasthttp.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("provider error: %d", resp.StatusCode()))
		}
		if resp.StatusCode() != fasthttp.StatusOK {
			return fmt.Errorf("provider error: %d", resp.StatusCode())
		}

		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return nil, err
	}
	return &result, nil
}

func decodeChunk(resp *chunkResponse) (domain.OverChunk, error) {
	if len(resp.Overs) == 0 {
		return domain.OverChunk{}, fmt.Errorf("%w: empty chunk", ErrMalformedResponse)
	}
	if len(resp.Overs) > constants.ChunkMaxOvers {
		return domain.OverChunk{}, fmt.Errorf("%w: %d overs exceeds chunk bound", ErrMalformedResponse, len(resp.Overs))
	}

	chunk := domain.OverChunk{Overs: make([]domain.ProviderOver, 0, len(resp.Overs))}
	for i, over := range resp.Overs {
		if over.BowlerID == "" {
			return domain.OverChunk{}, fmt.Errorf("%w: over %d missing bowler", ErrMalformedResponse, i)
		}
		if len(over.Balls) == 0 {
			return domain.OverChunk{}, fmt.Errorf("%w: over %d has no deliveries", ErrMalformedResponse, i)
		}
		decoded := domain.ProviderOver{BowlerID: over.BowlerID}
		for j, ball := range over.Balls {
			ev, err := decodeOutcome(ball.Outcome, ball.Runs, ball.WicketType)
			if err != nil {
				return domain.OverChunk{}, fmt.Errorf("%w: over %d ball %d: %v", ErrMalformedResponse, i, j, err)
			}
			decoded.Balls = append(decoded.Balls, domain.ProviderBall{
				Event:          ev,
				CommentaryHint: ball.Commentary,
			})
		}
		chunk.Overs = append(chunk.Overs, decoded)
	}
	return chunk, nil
}

func decodeOutcome(code string, runs int, wicketType string) (domain.BallEvent, error) {
	switch code {
	case "0", "1", "2", "3", "4", "5", "6":
		return domain.BallEvent{Kind: domain.BallRuns, Runs: int(code[0] - '0')}, nil
	case "wicket":
		return domain.BallEvent{Kind: domain.BallWicket, Wicket: decodeWicket(wicketType)}, nil
	case "wide":
		return domain.BallEvent{Kind: domain.BallExtra, Extra: domain.ExtraWide, Runs: runs}, nil
	case "no_ball":
		return domain.BallEvent{Kind: domain.BallExtra, Extra: domain.ExtraNoBall, Runs: runs}, nil
	case "bye":
		return domain.BallEvent{Kind: domain.BallExtra, Extra: domain.ExtraBye, Runs: runs}, nil
	case "leg_bye":
		return domain.BallEvent{Kind: domain.BallExtra, Extra: domain.ExtraLegBye, Runs: runs}, nil
	default:
		return domain.BallEvent{}, fmt.Errorf("unknown outcome code %q", code)
	}
}

func decodeWicket(wicketType string) domain.WicketKind {
	switch domain.WicketKind(wicketType) {
	case domain.WicketBowled, domain.WicketCaught, domain.WicketLBW, domain.WicketRunOut, domain.WicketStumped:
		return domain.WicketKind(wicketType)
	default:
		// Unknown sub-types degrade to a generic wicket; the commentary
		// engine has its own fallback for these.
		return domain.WicketNone
	}
}
