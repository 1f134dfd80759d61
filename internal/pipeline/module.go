// Package pipeline provides the sales pipeline bounded context module:
// accounts, opportunities, stage transitions, lead conversion and the
// aggregated board and statistics.
package pipeline

import (
	"crm_pipeline_backend/internal/events"
	apphttp "crm_pipeline_backend/internal/http"
	"crm_pipeline_backend/internal/pipeline/handler"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/internal/pipeline/transport"
	"crm_pipeline_backend/platform/config"
	"crm_pipeline_backend/platform/logger"
	"crm_pipeline_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is the configuration the pipeline module reads.
type ModuleConfig interface {
	config.PipelineConfig
	config.CacheConfig
}

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	service    *service.Service
	aggregator *service.Aggregator
	repo       *repository.Repository
}

// NewModule wires the repository, service, aggregator and handler. A nil
// cache disables aggregate caching.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg ModuleConfig, cache service.Cache, log *logger.Logger) (*Module, error) {
	if err := transport.RegisterValidations(val); err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, log)
	svc.SetEventBus(eventBus)
	svc.SetStrictConversion(cfg.GetStrictConversion())
	svc.RegisterHandlers(eventBus)

	agg := service.NewAggregator(repo, cache, cfg.GetPipelineCacheTTL(), log)
	agg.Subscribe(eventBus)

	return &Module{
		handler:    handler.New(svc, agg, val),
		service:    svc,
		aggregator: agg,
		repo:       repo,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// Service returns the write path for wiring notifiers and feedback.
func (m *Module) Service() *service.Service {
	return m.service
}

// Aggregator returns the read side.
func (m *Module) Aggregator() *service.Aggregator {
	return m.aggregator
}

// RegisterRoutes mounts pipeline routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	accounts := ctx.Protected.Group("/accounts")
	accounts.POST("", m.handler.CreateAccount)
	accounts.GET("/:id", m.handler.GetAccount)

	opportunities := ctx.Protected.Group("/opportunities")
	opportunities.POST("", m.handler.CreateOpportunity)
	opportunities.GET("/:id", m.handler.GetOpportunity)
	opportunities.PATCH("/:id/stage", m.handler.TransitionStage)
	opportunities.PATCH("/:id/probability", m.handler.UpdateProbability)
	opportunities.POST("/:id/convert", m.handler.Convert)
	opportunities.GET("/:id/history", m.handler.History)

	board := ctx.Protected.Group("/pipeline")
	board.GET("/stages", m.handler.ListByStage)
	board.GET("/stats", m.handler.Stats)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
