package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/errors"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/middleware"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/repository"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

// PropertyHandler serves the public catalogue and the admin listing routes.
type PropertyHandler struct {
	service         services.PropertyService
	defaultPageSize int
}

// NewPropertyHandler creates a new PropertyHandler instance.
func NewPropertyHandler(service services.PropertyService, defaultPageSize int) *PropertyHandler {
	if defaultPageSize < 1 {
		defaultPageSize = 12
	}
	return &PropertyHandler{
		service:         service,
		defaultPageSize: defaultPageSize,
	}
}

// ListRequest represents the query parameters for the list endpoint.
// Paging is applied only when page or pageSize is present.
type ListRequest struct {
	City     string `form:"city"`
	Type     string `form:"type"`
	Status   string `form:"status"`
	MinPrice *int64 `form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice *int64 `form:"maxPrice" binding:"omitempty,gte=0"`
	Page     *int   `form:"page"`
	PageSize *int   `form:"pageSize"`
}

// Filters converts the query into repository filters.
func (r ListRequest) Filters() repository.Filters {
	return repository.Filters{
		City:     r.City,
		Type:     r.Type,
		Status:   r.Status,
		MinPrice: r.MinPrice,
		MaxPrice: r.MaxPrice,
	}
}

// ListResponse represents an unpaged list of properties.
type ListResponse struct {
	Properties []models.Property `json:"properties"`
	Count      int               `json:"count"`
}

// PropertyResponse wraps a single property.
type PropertyResponse struct {
	Property *models.Property `json:"property"`
}

// FeaturedRequest is the body of the feature toggle.
type FeaturedRequest struct {
	Featured *bool `json:"featured" binding:"required"`
}

// MigrationResponse reports how many documents a migration rewrote.
type MigrationResponse struct {
	Migrated int `json:"migrated"`
}

func newListResponse(props []models.Property) ListResponse {
	if props == nil {
		props = []models.Property{}
	}
	return ListResponse{Properties: props, Count: len(props)}
}

// bindError answers a request whose query or body could not be bound.
func bindError(c *gin.Context, err error, message string) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return
	}
	apierrors.ReadFailed(c, err, message)
}

// List handles GET /api/v1/properties.
func (h *PropertyHandler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err, "Invalid query parameters")
		return
	}
	filters := req.Filters()

	if req.Page == nil && req.PageSize == nil {
		props, err := h.service.List(c.Request.Context(), filters)
		if err != nil {
			apierrors.FromError(c, "list properties", err)
			return
		}
		c.JSON(http.StatusOK, newListResponse(props))
		return
	}

	page, pageSize := 1, h.defaultPageSize
	if req.Page != nil {
		page = *req.Page
	}
	if req.PageSize != nil {
		pageSize = *req.PageSize
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Paginating properties", map[string]interface{}{
			"filters":  filters.Params(),
			"page":     page,
			"pageSize": pageSize,
		})
	}

	result, err := h.service.Paginate(c.Request.Context(), filters, page, pageSize)
	if err != nil {
		apierrors.FromError(c, "paginate properties", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Featured handles GET /api/v1/properties/featured.
func (h *PropertyHandler) Featured(c *gin.Context) {
	props, err := h.service.Featured(c.Request.Context())
	if err != nil {
		apierrors.FromError(c, "list featured properties", err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(props))
}

// Get handles GET /api/v1/properties/:id.
func (h *PropertyHandler) Get(c *gin.Context) {
	prop, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.FromError(c, "get property", err)
		return
	}
	c.JSON(http.StatusOK, PropertyResponse{Property: prop})
}

// Create handles POST /api/v1/admin/properties.
func (h *PropertyHandler) Create(c *gin.Context) {
	var prop models.Property
	if err := c.ShouldBindJSON(&prop); err != nil {
		bindError(c, err, "Invalid property body")
		return
	}

	created, err := h.service.Create(c.Request.Context(), prop)
	if err != nil {
		apierrors.FromError(c, "create property", err)
		return
	}
	c.JSON(http.StatusCreated, PropertyResponse{Property: created})
}

// Update handles PUT and PATCH /api/v1/admin/properties/:id. The body is a
// merge patch: only the fields present are written.
func (h *PropertyHandler) Update(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierrors.ReadFailed(c, err, "Could not read request body")
		return
	}

	updated, err := h.service.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		apierrors.FromError(c, "update property", err)
		return
	}
	c.JSON(http.StatusOK, PropertyResponse{Property: updated})
}

// Delete handles DELETE /api/v1/admin/properties/:id.
func (h *PropertyHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		apierrors.FromError(c, "delete property", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetFeatured handles PUT /api/v1/admin/properties/:id/featured.
func (h *PropertyHandler) SetFeatured(c *gin.Context) {
	var req FeaturedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "Invalid featured body")
		return
	}

	updated, err := h.service.SetFeatured(c.Request.Context(), c.Param("id"), *req.Featured)
	if err != nil {
		apierrors.FromError(c, "set featured", err)
		return
	}
	c.JSON(http.StatusOK, PropertyResponse{Property: updated})
}

// MigrateLegacyTypes handles POST /api/v1/admin/migrations/legacy-types.
func (h *PropertyHandler) MigrateLegacyTypes(c *gin.Context) {
	migrated, err := h.service.MigrateLegacyTypes(c.Request.Context())
	if err != nil {
		apierrors.FromError(c, "migrate legacy types", err)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Legacy property types migrated", map[string]interface{}{
			"migrated": migrated,
		})
	}
	c.JSON(http.StatusOK, MigrationResponse{Migrated: migrated})
}
