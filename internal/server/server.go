package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cricket-sim/internal/domain"
	"cricket-sim/internal/ledger"
	"cricket-sim/internal/service"
	"cricket-sim/internal/sim"
	"cricket-sim/internal/tournament"

	"github.com/rs/zerolog"
)

// Server is the JSON HTTP surface over the simulation and tournament
// services. Handlers decode, delegate and map errors; no cricket logic
// lives here.
type Server struct {
	simulation  *service.SimulationService
	tournaments *service.TournamentService
	logger      zerolog.Logger
}

func New(simulation *service.SimulationService, tournaments *service.TournamentService, logger zerolog.Logger) *Server {
	return &Server{
		simulation:  simulation,
		tournaments: tournaments,
		logger:      logger,
	}
}

// Register mounts all routes on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tournaments", s.createTournament)
	mux.HandleFunc("GET /api/tournaments/{id}/standings", s.standings)
	mux.HandleFunc("GET /api/tournaments/{id}/fixtures", s.fixtures)
	mux.HandleFunc("POST /api/matches", s.startMatch)
	mux.HandleFunc("POST /api/matches/{id}/advance", s.advanceMatch)
	mux.HandleFunc("POST /api/matches/{id}/run", s.runMatch)
	mux.HandleFunc("GET /api/matches/{id}", s.getMatch)
	mux.HandleFunc("POST /api/fixtures/{id}/resimulate", s.resimulateFixture)
	mux.HandleFunc("GET /api/players/{id}/stats", s.playerStats)
	mux.HandleFunc("GET /healthz", s.healthz)
}

type createTournamentRequest struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Teams  []struct {
		Name      string `json:"name"`
		ShortName string `json:"short_name"`
		Players   []struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"players"`
	} `json:"teams"`
}

func (s *Server) createTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	inputs := make([]service.TeamInput, 0, len(req.Teams))
	for _, t := range req.Teams {
		in := service.TeamInput{Name: t.Name, ShortName: t.ShortName}
		for _, p := range t.Players {
			in.Players = append(in.Players, service.PlayerInput{Name: p.Name, Role: p.Role})
		}
		inputs = append(inputs, in)
	}

	t, fixtures, err := s.tournaments.Create(r.Context(), req.Name, domain.Format(req.Format), inputs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"tournament": tournamentJSON(t),
		"fixtures":   fixturesJSON(fixtures),
	})
}

func (s *Server) standings(w http.ResponseWriter, r *http.Request) {
	rows, err := s.tournaments.Standings(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"rank":         row.Rank,
			"team_id":      row.TeamID,
			"team_name":    row.TeamName,
			"played":       row.Played,
			"won":          row.Won,
			"lost":         row.Lost,
			"tied":         row.Tied,
			"points":       row.Points,
			"net_run_rate": row.NetRunRate(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"standings": out})
}

func (s *Server) fixtures(w http.ResponseWriter, r *http.Request) {
	fixtures, err := s.tournaments.Fixtures(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fixtures": fixturesJSON(fixtures)})
}

type startMatchRequest struct {
	FixtureID string `json:"fixture_id"`
	Scenario  string `json:"scenario"`
}

func (s *Server) startMatch(w http.ResponseWriter, r *http.Request) {
	var req startMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.FixtureID == "" || req.Scenario == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("fixture_id and scenario are required"))
		return
	}

	m, err := s.simulation.StartMatch(r.Context(), req.FixtureID, req.Scenario)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"match_id":       m.ID,
		"status":         string(m.Status),
		"scenario_score": m.Scenario.Score,
	})
}

func (s *Server) advanceMatch(w http.ResponseWriter, r *http.Request) {
	state, err := s.simulation.AdvanceChunk(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stateJSON(state))
}

func (s *Server) runMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.simulation.RunToCompletion(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, matchJSON(m))
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	lastBalls := 0
	if v := r.URL.Query().Get("last_balls"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, http.StatusBadRequest, errors.New("last_balls must be a non-negative integer"))
			return
		}
		lastBalls = n
	}

	m, state, balls, err := s.simulation.GetMatchState(r.Context(), r.PathValue("id"), lastBalls)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := map[string]any{"balls": ballsJSON(balls)}
	if state != nil {
		resp["live"] = true
		resp["state"] = stateJSON(state)
	} else {
		resp["live"] = false
		resp["match"] = matchJSON(m)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) resimulateFixture(w http.ResponseWriter, r *http.Request) {
	if err := s.tournaments.Resimulate(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "scheduled"})
}

func (s *Server) playerStats(w http.ResponseWriter, r *http.Request) {
	agg, err := s.simulation.PlayerStats(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"player_id":            agg.PlayerID,
		"matches":              agg.Matches,
		"innings_batted":       agg.InningsBatted,
		"runs":                 agg.Runs,
		"balls_faced":          agg.BallsFaced,
		"fours":                agg.Fours,
		"sixes":                agg.Sixes,
		"fifties":              agg.Fifties,
		"hundreds":             agg.Hundreds,
		"not_outs":             agg.NotOuts,
		"highest_score":        agg.HighestScore,
		"wickets":              agg.Wickets,
		"balls_bowled":         agg.BallsBowled,
		"runs_conceded":        agg.RunsConceded,
		"maidens":              agg.Maidens,
		"five_wicket_hauls":    agg.FiveWicketHauls,
		"best_bowling_wickets": agg.BestBowlingWickets,
		"best_bowling_runs":    agg.BestBowlingRuns,
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps domain sentinels onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMatchNotFound), errors.Is(err, sql.ErrNoRows):
		s.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, service.ErrScenarioInvalid):
		s.writeError(w, r, http.StatusUnprocessableEntity, err)
	case errors.Is(err, sim.ErrSimulationActive),
		errors.Is(err, tournament.ErrStandingsInconsistent),
		errors.Is(err, tournament.ErrFixtureNotCompleted),
		errors.Is(err, ledger.ErrAlreadyApplied),
		errors.Is(err, ledger.ErrNotApplied):
		s.writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, sim.ErrRetryCeiling):
		s.writeError(w, r, http.StatusBadGateway, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Warn().Err(err).Int("status", status).Msg("request rejected")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func tournamentJSON(t *domain.Tournament) map[string]any {
	return map[string]any{
		"id":     t.ID,
		"name":   t.Name,
		"format": string(t.Format),
		"stage":  string(t.Stage),
	}
}

func fixturesJSON(fixtures []domain.Fixture) []map[string]any {
	out := make([]map[string]any, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, map[string]any{
			"id":        f.ID,
			"stage":     string(f.Stage),
			"position":  f.Position,
			"team_a_id": f.TeamAID,
			"team_b_id": f.TeamBID,
			"match_id":  f.MatchID,
			"status":    string(f.Status),
		})
	}
	return out
}

func matchJSON(m *domain.Match) map[string]any {
	innings := make([]map[string]any, 0, 2)
	for _, inn := range m.InningsScores {
		if inn.BattingTeamID == "" {
			continue
		}
		innings = append(innings, map[string]any{
			"batting_team_id": inn.BattingTeamID,
			"runs":            inn.Runs,
			"wickets":         inn.Wickets,
			"legal_balls":     inn.LegalBalls,
		})
	}
	return map[string]any{
		"id":             m.ID,
		"tournament_id":  m.TournamentID,
		"fixture_id":     m.FixtureID,
		"team_a_id":      m.TeamAID,
		"team_b_id":      m.TeamBID,
		"format":         string(m.Format),
		"status":         string(m.Status),
		"winner_team_id": m.WinnerTeamID,
		"result":         m.ResultText,
		"innings":        innings,
	}
}

func stateJSON(state *domain.MatchState) map[string]any {
	inn := state.Current()
	return map[string]any{
		"innings":        inn.Number,
		"batting_team":   inn.BattingTeamID,
		"runs":           inn.Runs,
		"wickets":        inn.Wickets,
		"legal_balls":    inn.LegalBalls,
		"target":         inn.Target,
		"striker_id":     inn.StrikerID,
		"non_striker_id": inn.NonStrikerID,
		"finished":       state.Finished,
		"winner_team_id": state.WinnerID,
		"result":         state.ResultText,
	}
}

func ballsJSON(balls []domain.BallOutcome) []map[string]any {
	out := make([]map[string]any, 0, len(balls))
	for _, b := range balls {
		out = append(out, map[string]any{
			"innings":      b.Innings,
			"sequence":     b.Sequence,
			"over":         b.Over,
			"ball_in_over": b.BallInOver,
			"batter_id":    b.BatterID,
			"bowler_id":    b.BowlerID,
			"outcome":      b.Event.Describe(),
			"runs":         b.Event.TotalRuns(),
			"commentary":   b.Commentary,
		})
	}
	return out
}
