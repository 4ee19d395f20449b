package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/errors"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

// LeadHandler takes inquiries from the public site and lists them for admins.
type LeadHandler struct {
	service services.LeadService
}

// NewLeadHandler creates a new LeadHandler instance.
func NewLeadHandler(service services.LeadService) *LeadHandler {
	return &LeadHandler{service: service}
}

// LeadCreatedResponse acknowledges a stored inquiry.
type LeadCreatedResponse struct {
	ID       string          `json:"id"`
	UserType models.LeadKind `json:"userType"`
}

// LeadListResponse represents the admin lead listing.
type LeadListResponse struct {
	Leads []models.Lead `json:"leads"`
	Count int           `json:"count"`
}

// SubmitBuyer handles POST /api/v1/leads/buyers.
func (h *LeadHandler) SubmitBuyer(c *gin.Context) {
	lead := &models.BuyerLead{}
	h.submit(c, lead, func() error { return h.service.SubmitBuyer(c.Request.Context(), lead) })
}

// SubmitOwner handles POST /api/v1/leads/owners.
func (h *LeadHandler) SubmitOwner(c *gin.Context) {
	lead := &models.OwnerLead{}
	h.submit(c, lead, func() error { return h.service.SubmitOwner(c.Request.Context(), lead) })
}

// SubmitContact handles POST /api/v1/leads/contacts.
func (h *LeadHandler) SubmitContact(c *gin.Context) {
	lead := &models.ContactLead{}
	h.submit(c, lead, func() error { return h.service.SubmitContact(c.Request.Context(), lead) })
}

func (h *LeadHandler) submit(c *gin.Context, lead models.Lead, store func() error) {
	if err := c.ShouldBindJSON(lead); err != nil {
		bindError(c, err, "Invalid inquiry body")
		return
	}

	if err := store(); err != nil {
		apierrors.FromError(c, "submit "+string(lead.Kind())+" lead", err)
		return
	}

	c.JSON(http.StatusCreated, LeadCreatedResponse{
		ID:       lead.Meta().ID,
		UserType: lead.Kind(),
	})
}

// List handles GET /api/v1/admin/leads/:kind. The kind may be singular or
// plural.
func (h *LeadHandler) List(c *gin.Context) {
	kind, ok := models.ParseLeadKind(c.Param("kind"))
	if !ok {
		apierrors.BadRequest(c, "Unknown lead kind", map[string]interface{}{
			"kind":    c.Param("kind"),
			"allowed": models.LeadKinds,
		})
		return
	}

	leads, err := h.service.List(c.Request.Context(), kind)
	if err != nil {
		apierrors.FromError(c, "list leads", err)
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	c.JSON(http.StatusOK, LeadListResponse{Leads: leads, Count: len(leads)})
}
