// Package handler exposes the lead read surface and the admin merge
// endpoint.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"leadrouter_backend/internal/leads/service"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service  *service.Service
	validate *validator.Validator
}

func New(service *service.Service, validate *validator.Validator) *Handler {
	return &Handler{service: service, validate: validate}
}

// List handles GET /leads.
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	leads, err := h.service.ListLeads(c.Request.Context(), tenantID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"leads": leads})
}

type auditEntry struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Get handles GET /leads/:leadId, returning the lead with its message
// history and audit trail.
func (h *Handler) Get(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	leadID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	lead, messages, trail, err := h.service.GetLead(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	audit := make([]auditEntry, 0, len(trail))
	for _, entry := range trail {
		audit = append(audit, auditEntry{
			ID:        entry.ID,
			EventType: entry.EventType,
			Payload:   json.RawMessage(entry.Payload),
			CreatedAt: entry.CreatedAt,
		})
	}

	httpkit.OK(c, gin.H{
		"lead":     lead,
		"messages": messages,
		"events":   audit,
	})
}

// Merge handles POST /admin/leads/:leadId/merge.
func (h *Handler) Merge(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	primaryID, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req transport.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	resp, err := h.service.Merge(c.Request.Context(), tenantID, primaryID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}
