package constants

import "time"

const (
	ExternalAPITimeout = 30 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 120 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

const (
	// ChunkMaxOvers bounds one provider generation batch.
	ChunkMaxOvers = 3

	// ProviderRetryCeiling is the number of corrected re-requests allowed
	// per chunk before the simulation fails terminally.
	ProviderRetryCeiling = 4

	// TransportRetryAttempts bounds low-level retries of a single provider
	// call (timeouts, connection resets) before it is surfaced.
	TransportRetryAttempts = 2

	// ScenarioMinScore is the lowest provider validation score accepted
	// for a master scenario, on the 0-10 scale.
	ScenarioMinScore = 6
)

const (
	// CollapseWindow and CollapseWickets define the "collapse" narrative
	// trigger: at least CollapseWickets down within the last
	// CollapseWindow deliveries.
	CollapseWindow  = 12
	CollapseWickets = 3

	// Milestone values use exact equality when checked, so each fires at
	// most once per innings.
	BatterMilestoneFifty   = 50
	BatterMilestoneHundred = 100
	PartnershipMilestone   = 50
)

const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	// LeagueWinPoints / LeagueTiePoints follow standard limited-overs
	// tournament scoring.
	LeagueWinPoints = 2
	LeagueTiePoints = 1

	// PlayoffTeams is the number of league sides promoted to the playoffs.
	PlayoffTeams = 4
)
