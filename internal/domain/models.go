package domain

import (
	"time"
)

type Team struct {
	ID        string
	Name      string
	ShortName string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Player struct {
	ID        string
	TeamID    string
	Name      string
	Role      string // "batter", "bowler", "all_rounder", "keeper"
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MasterScenario is the user-authored steering constraint for one match.
// Created once at match setup and immutable afterwards.
type MasterScenario struct {
	Text     string
	Score    int // provider validation score, 0-10
	Valid    bool
	Feedback string
}

type MatchStatus string

const (
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchFailed     MatchStatus = "failed"
)

type Match struct {
	ID            string
	TournamentID  string
	FixtureID     string
	TeamAID       string
	TeamBID       string
	Format        Format
	Scenario      MasterScenario
	Status        MatchStatus
	StatsApplied  bool
	WinnerTeamID  string
	ResultText    string
	InningsScores [2]InningsScore
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InningsScore is the persisted summary of one innings.
type InningsScore struct {
	BattingTeamID string
	Runs          int
	Wickets       int
	LegalBalls    int
}

// BallOutcome is the immutable record of one delivery, including its
// rendered commentary. Appended in strict sequence, never mutated.
type BallOutcome struct {
	ID         string
	MatchID    string
	Innings    int
	Sequence   int // 1-based position across the innings, extras included
	Over       int // 0-based completed-over count at delivery time
	BallInOver int // legal balls completed in the over before this delivery
	BatterID   string
	BowlerID   string
	Event      BallEvent
	Commentary string
	CreatedAt  time.Time
}

// ProviderBall is one delivery candidate inside a provider chunk.
type ProviderBall struct {
	Event          BallEvent
	CommentaryHint string
}

// ProviderOver is one over of a chunk, bound to exactly one bowler.
type ProviderOver struct {
	BowlerID string
	Balls    []ProviderBall
}

// OverChunk is a provider response batch of 1-3 overs, validated as a unit.
type OverChunk struct {
	Overs []ProviderOver
}

type BattingScorecard struct {
	ID        string
	MatchID   string
	PlayerID  string
	TeamID    string
	Innings   int
	Position  int
	Runs      int
	Balls     int
	Fours     int
	Sixes     int
	Out       bool
	Dismissal WicketKind
}

type BowlingScorecard struct {
	ID           string
	MatchID      string
	PlayerID     string
	TeamID       string
	Innings      int
	BallsBowled  int
	RunsConceded int
	Wickets      int
	Maidens      int
}

type Partnership struct {
	ID      string
	MatchID string
	Innings int
	Wicket  int // partnership for this wicket number, 1-based
	Runs    int
	Balls   int
}

// PlayerAggregate is the cumulative career record for one player. Mutated
// only through the stat ledger's apply/reverse operations.
type PlayerAggregate struct {
	PlayerID           string
	Matches            int
	InningsBatted      int
	Runs               int
	BallsFaced         int
	Fours              int
	Sixes              int
	Fifties            int
	Hundreds           int
	NotOuts            int
	HighestScore       int
	Wickets            int
	BallsBowled        int
	RunsConceded       int
	Maidens            int
	FiveWicketHauls    int
	BestBowlingWickets int
	BestBowlingRuns    int
	StatsStale         bool
	UpdatedAt          time.Time
}

type Stage string

const (
	StageLeague Stage = "league"
	StageSemi   Stage = "semi"
	StageFinal  Stage = "final"
)

type FixtureStatus string

const (
	FixtureScheduled FixtureStatus = "scheduled"
	FixtureCompleted FixtureStatus = "completed"
)

type Fixture struct {
	ID               string
	TournamentID     string
	Stage            Stage
	Position         int
	TeamAID          string
	TeamBID          string
	MatchID          string // empty until simulated, cleared on resimulate
	Status           FixtureStatus
	StandingsApplied bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TournamentStanding keeps run-rate components as legal-ball counts, never
// decimal overs, so NRR arithmetic avoids the .1/.6 rounding trap.
type TournamentStanding struct {
	TournamentID string
	TeamID       string
	Played       int
	Won          int
	Lost         int
	Tied         int
	Points       int
	RunsFor      int
	BallsFaced   int
	RunsAgainst  int
	BallsBowled  int
	UpdatedAt    time.Time
}

// NetRunRate is (runs scored per over faced) - (runs conceded per over bowled).
func (s TournamentStanding) NetRunRate() float64 {
	var nrr float64
	if s.BallsFaced > 0 {
		nrr = float64(s.RunsFor) * 6 / float64(s.BallsFaced)
	}
	if s.BallsBowled > 0 {
		nrr -= float64(s.RunsAgainst) * 6 / float64(s.BallsBowled)
	}
	return nrr
}

type TournamentStage string

const (
	TournamentLeague   TournamentStage = "league"
	TournamentPlayoffs TournamentStage = "playoffs"
	TournamentDone     TournamentStage = "done"
)

type Tournament struct {
	ID        string
	Name      string
	Format    Format
	Stage     TournamentStage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchResult is the immutable product of a completed simulation, handed to
// the persistence layer and the stat ledger.
type MatchResult struct {
	Match        Match
	Balls        []BallOutcome
	Batting      []BattingScorecard
	Bowling      []BowlingScorecard
	Partnerships []Partnership
}
