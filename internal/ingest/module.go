package ingest

import (
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/leads/service"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/logger"
)

// Module bundles the ingestion surface for wiring in cmd/api.
type Module struct {
	handler *Handler
	cfg     config.IngestConfig
	limiter *httpkit.WebhookRateLimiter
}

func NewModule(leads *service.Service, cfg config.IngestConfig, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(leads),
		cfg:     cfg,
		limiter: httpkit.NewWebhookRateLimiter(log),
	}
}

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	rc.Protected.POST("/ingest", m.handler.Ingest)

	webhooks := rc.V1.Group("/webhook")
	webhooks.Use(m.limiter.RateLimit(), WebhookAuth(m.cfg))
	webhooks.POST("/ingest", m.handler.WebhookIngest)
	webhooks.POST("/indiamart", m.handler.SourceWebhook(SourceIndiaMart))
	webhooks.POST("/justdial", m.handler.SourceWebhook(SourceJustDial))
}
