package agents

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the agents context for wiring in cmd/api.
type Module struct {
	Repo    *Repository
	handler *Handler
}

func NewModule(pool *pgxpool.Pool, validate *validator.Validator) *Module {
	repo := NewRepository(pool)
	return &Module{
		Repo:    repo,
		handler: NewHandler(repo, validate),
	}
}

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	group := rc.Admin.Group("/agents")
	group.POST("", m.handler.Create)
	group.GET("", m.handler.List)
	group.PUT("/:agentId", m.handler.Update)
	group.DELETE("/:agentId", m.handler.Deactivate)
}
