package ingest

import (
	"encoding/json"
	"io"
	"net/http"

	"leadrouter_backend/internal/leads/service"
	"leadrouter_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxPayloadBytes caps webhook bodies; marketplace payloads are small.
const maxPayloadBytes = 1 << 20

type Handler struct {
	leads *service.Service
}

func NewHandler(leads *service.Service) *Handler {
	return &Handler{leads: leads}
}

// Ingest handles POST /ingest for authenticated callers. The tenant comes
// from the token; the body is the canonical event shape with an optional
// source tag.
func (h *Handler) Ingest(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	raw, err := readBody(c)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable body", nil)
		return
	}

	h.process(c, tenantID, sourceOf(raw, c.Query("source")), raw)
}

// WebhookIngest handles POST /webhook/ingest: the generic shared-secret
// entry point. The tenant is explicit, in the payload or query string.
func (h *Handler) WebhookIngest(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable body", nil)
		return
	}

	tenantID, ok := tenantOf(raw, c.Query("tenantId"))
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "missing or invalid tenantId", nil)
		return
	}

	h.process(c, tenantID, sourceOf(raw, c.Query("source")), raw)
}

// SourceWebhook returns a handler bound to one provider's field mapping,
// e.g. POST /webhook/indiamart. The tenant rides on the query string, which
// is how marketplace panels are configured to call back.
func (h *Handler) SourceWebhook(source string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := readBody(c)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable body", nil)
			return
		}

		tenantID, ok := tenantOf(raw, c.Query("tenantId"))
		if !ok {
			httpkit.Error(c, http.StatusBadRequest, "missing or invalid tenantId", nil)
			return
		}

		h.process(c, tenantID, source, raw)
	}
}

// process runs normalization and the upsert pipeline. Ingestion answers
// success once the lead and message are durable, even when assignment or
// scoring partially failed.
func (h *Handler) process(c *gin.Context, tenantID uuid.UUID, source string, raw []byte) {
	event := Normalize(source, raw)

	resp, err := h.leads.ProcessInbound(c.Request.Context(), tenantID, event)
	if httpkit.HandleError(c, err) {
		return
	}
	if resp.IsNew {
		httpkit.Created(c, resp)
		return
	}
	httpkit.OK(c, resp)
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
}

// sourceOf prefers an explicit query tag, then a source field in the body.
func sourceOf(raw []byte, queryTag string) string {
	if queryTag != "" {
		return queryTag
	}
	var envelope struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	return envelope.Source
}

// tenantOf resolves the explicit tenant id webhook callers must provide.
func tenantOf(raw []byte, queryTenant string) (uuid.UUID, bool) {
	if queryTenant != "" {
		id, err := uuid.Parse(queryTenant)
		return id, err == nil
	}
	var envelope struct {
		TenantID string `json:"tenantId"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(envelope.TenantID)
	return id, err == nil
}
