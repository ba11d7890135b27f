package triage

import (
	"net/http"
	"strconv"
	"time"

	"leadrouter_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ItemResponse is the JSON representation of a triage item.
type ItemResponse struct {
	ID        uuid.UUID  `json:"id"`
	LeadID    uuid.UUID  `json:"leadId"`
	Status    Status     `json:"status"`
	Reason    string     `json:"reason"`
	ClaimedBy *uuid.UUID `json:"claimedBy,omitempty"`
	ClosedBy  *uuid.UUID `json:"closedBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

func toItemResponse(item Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		LeadID:    item.LeadID,
		Status:    item.Status,
		Reason:    item.Reason,
		ClaimedBy: item.ClaimedBy,
		ClosedBy:  item.ClosedBy,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		ClosedAt:  item.ClosedAt,
	}
}

// List handles GET /triage.
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.service.ListOpen(c.Request.Context(), tenantID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	httpkit.OK(c, gin.H{"items": out})
}

// Claim handles POST /triage/:itemId/claim.
func (h *Handler) Claim(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid item id", nil)
		return
	}

	item, err := h.service.Claim(c.Request.Context(), tenantID, itemID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toItemResponse(item))
}

// Close handles POST /triage/:itemId/close.
func (h *Handler) Close(c *gin.Context) {
	tenantID, ok := httpkit.GetTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, "missing tenant scope", nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid item id", nil)
		return
	}

	item, err := h.service.Close(c.Request.Context(), tenantID, itemID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toItemResponse(item))
}
