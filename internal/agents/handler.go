package agents

import (
	"errors"
	"net/http"
	"time"

	"leadrouter_backend/platform/httpkit"
	"leadrouter_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	repo     *Repository
	validate *validator.Validator
}

func NewHandler(repo *Repository, validate *validator.Validator) *Handler {
	return &Handler{repo: repo, validate: validate}
}

type AgentResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Active        bool      `json:"active"`
	Capacity      *int      `json:"capacity,omitempty"`
	ExternalScore *int      `json:"externalScore,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toAgentResponse(agent Agent) AgentResponse {
	return AgentResponse{
		ID:            agent.ID,
		Name:          agent.Name,
		Active:        agent.Active,
		Capacity:      agent.Capacity,
		ExternalScore: agent.ExternalScore,
		CreatedAt:     agent.CreatedAt,
		UpdatedAt:     agent.UpdatedAt,
	}
}

type createAgentRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=120"`
	Capacity      *int   `json:"capacity" validate:"omitempty,min=1,max=1000"`
	ExternalScore *int   `json:"externalScore" validate:"omitempty,min=0,max=100"`
}

type updateAgentRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=120"`
	Active        bool   `json:"active"`
	Capacity      *int   `json:"capacity" validate:"omitempty,min=1,max=1000"`
	ExternalScore *int   `json:"externalScore" validate:"omitempty,min=0,max=100"`
}

// Create handles POST /admin/agents.
func (h *Handler) Create(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	agent, err := h.repo.Create(c.Request.Context(), CreateParams{
		TenantID:      tenantID,
		Name:          req.Name,
		Capacity:      req.Capacity,
		ExternalScore: req.ExternalScore,
	})
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to create agent", nil)
		return
	}
	httpkit.Created(c, toAgentResponse(agent))
}

// List handles GET /admin/agents.
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	list, err := h.repo.List(c.Request.Context(), tenantID)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list agents", nil)
		return
	}

	out := make([]AgentResponse, 0, len(list))
	for _, agent := range list {
		out = append(out, toAgentResponse(agent))
	}
	httpkit.OK(c, gin.H{"agents": out})
}

// Update handles PUT /admin/agents/:agentId.
func (h *Handler) Update(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	agentID, err := uuid.Parse(c.Param("agentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid agent id", nil)
		return
	}

	var req updateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	agent, err := h.repo.Update(c.Request.Context(), UpdateParams{
		TenantID:      tenantID,
		AgentID:       agentID,
		Name:          req.Name,
		Active:        req.Active,
		Capacity:      req.Capacity,
		ExternalScore: req.ExternalScore,
	})
	if errors.Is(err, ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "agent not found", nil)
		return
	}
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to update agent", nil)
		return
	}
	httpkit.OK(c, toAgentResponse(agent))
}

// Deactivate handles DELETE /admin/agents/:agentId.
func (h *Handler) Deactivate(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	agentID, err := uuid.Parse(c.Param("agentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid agent id", nil)
		return
	}

	err = h.repo.Deactivate(c.Request.Context(), tenantID, agentID)
	if errors.Is(err, ErrNotFound) {
		httpkit.Error(c, http.StatusNotFound, "agent not found", nil)
		return
	}
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to deactivate agent", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
