package triage

import (
	"leadrouter_backend/internal/events"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the triage context for wiring in cmd/api.
type Module struct {
	Service *Service
	handler *Handler
}

func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, bus, log)
	return &Module{
		Service: service,
		handler: NewHandler(service),
	}
}

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	group := rc.Protected.Group("/triage")
	group.GET("", m.handler.List)
	group.POST("/:itemId/claim", m.handler.Claim)
	group.POST("/:itemId/close", m.handler.Close)
}
