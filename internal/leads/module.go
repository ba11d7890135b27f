// Package leads wires the lead bounded context: repository, dedup/upsert
// service, merge engine and HTTP surface.
package leads

import (
	"leadrouter_backend/internal/events"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/leads/handler"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/service"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the leads context. Repo and Service are exported because
// the ingest and assignment modules build on them.
type Module struct {
	Repo    *repository.Repository
	Service *service.Service
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger, validate *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.NewService(repo, bus, log)
	return &Module{
		Repo:    repo,
		Service: svc,
		handler: handler.New(svc, validate),
	}
}

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	group := rc.Protected.Group("/leads")
	group.GET("", m.handler.List)
	group.GET("/:leadId", m.handler.Get)

	rc.Admin.POST("/leads/:leadId/merge", m.handler.Merge)
}
