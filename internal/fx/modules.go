package fx

import (
	"cricket-sim/internal/commentary"
	"cricket-sim/internal/config"
	"cricket-sim/internal/database"
	"cricket-sim/internal/ledger"
	"cricket-sim/internal/logger"
	"cricket-sim/internal/provider"
	"cricket-sim/internal/repository"
	"cricket-sim/internal/server"
	"cricket-sim/internal/service"
	"cricket-sim/internal/sim"
	"cricket-sim/internal/tournament"

	"go.uber.org/fx"
)

func ProvideCommentary(cfg *config.Config, catalog *commentary.Catalog) *commentary.Engine {
	return commentary.NewEngine(catalog, cfg.CommentarySeed)
}

func ProvideOutcomeProvider(client *provider.OutcomeClient) service.OutcomeProvider {
	return client
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewTeamRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewScorecardRepository),
	fx.Provide(repository.NewAggregateRepository),
	fx.Provide(repository.NewFixtureRepository),
	fx.Provide(repository.NewStandingRepository),
	// outcome provider client
	fx.Provide(provider.NewOutcomeClient),
	fx.Provide(ProvideOutcomeProvider),
	// simulation core
	fx.Provide(commentary.LoadCatalog),
	fx.Provide(ProvideCommentary),
	fx.Provide(sim.NewRegistry),
	fx.Provide(ledger.New),
	fx.Provide(tournament.NewEngine),
	// svc
	fx.Provide(service.NewSimulationService),
	fx.Provide(service.NewTournamentService),
	// server
	fx.Provide(server.New),
)
