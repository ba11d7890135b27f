package assignment

import (
	"net/http"
	"time"

	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service  *Service
	validate *validator.Validator
}

func NewHandler(service *Service, validate *validator.Validator) *Handler {
	return &Handler{service: service, validate: validate}
}

type ConfigResponse struct {
	Strategy         Strategy  `json:"strategy"`
	AutoAssign       bool      `json:"autoAssign"`
	ConsiderCapacity bool      `json:"considerCapacity"`
	ConsiderScore    bool      `json:"considerScore"`
	MinDaily         int       `json:"minDaily"`
	MaxDaily         int       `json:"maxDaily"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toConfigResponse(cfg Config) ConfigResponse {
	return ConfigResponse{
		Strategy:         cfg.Strategy,
		AutoAssign:       cfg.AutoAssign,
		ConsiderCapacity: cfg.ConsiderCapacity,
		ConsiderScore:    cfg.ConsiderScore,
		MinDaily:         cfg.MinDaily,
		MaxDaily:         cfg.MaxDaily,
		UpdatedAt:        cfg.UpdatedAt,
	}
}

type updateConfigRequest struct {
	Strategy         Strategy `json:"strategy" validate:"required"`
	AutoAssign       bool     `json:"autoAssign"`
	ConsiderCapacity bool     `json:"considerCapacity"`
	ConsiderScore    bool     `json:"considerScore"`
	MinDaily         int      `json:"minDaily" validate:"min=0,max=500"`
	MaxDaily         int      `json:"maxDaily" validate:"min=0,max=500"`
}

// GetConfig handles GET /admin/assignment/config.
func (h *Handler) GetConfig(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	cfg, err := h.service.GetConfig(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toConfigResponse(cfg))
}

// UpdateConfig handles PUT /admin/assignment/config.
func (h *Handler) UpdateConfig(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	cfg, err := h.service.UpdateConfig(c.Request.Context(), Config{
		TenantID:         tenantID,
		Strategy:         req.Strategy,
		AutoAssign:       req.AutoAssign,
		ConsiderCapacity: req.ConsiderCapacity,
		ConsiderScore:    req.ConsiderScore,
		MinDaily:         req.MinDaily,
		MaxDaily:         req.MaxDaily,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toConfigResponse(cfg))
}
