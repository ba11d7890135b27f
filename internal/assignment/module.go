package assignment

import (
	"time"

	"leadrouter_backend/internal/events"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the assignment context for wiring in cmd/api and
// cmd/scheduler.
type Module struct {
	Service *Service
	handler *Handler
}

func NewModule(pool *pgxpool.Pool, agentSrc AgentSource, leadStore LeadStore, bus events.Bus, log *logger.Logger, validate *validator.Validator, kpiTTL time.Duration) *Module {
	stats := NewStatsRepository(pool)
	kpi := NewKPIScorer(stats, kpiTTL)
	service := NewService(agentSrc, leadStore, NewConfigRepository(pool), stats, kpi, bus, log)
	return &Module{
		Service: service,
		handler: NewHandler(service, validate),
	}
}

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	group := rc.Admin.Group("/assignment")
	group.GET("/config", m.handler.GetConfig)
	group.PUT("/config", m.handler.UpdateConfig)
}
