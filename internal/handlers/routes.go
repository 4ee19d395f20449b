package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/auth"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/middleware"
)

// Routes groups the handlers mounted on the router.
type Routes struct {
	Health     *HealthHandler
	Properties *PropertyHandler
	Leads      *LeadHandler
	Drafts     *DraftHandler
}

// Register mounts every route. Admin routes require a verified admin session.
func (r Routes) Register(router *gin.Engine, verifier *auth.Verifier) {
	router.GET("/health", r.Health.Health)
	router.GET("/health/ready", r.Health.Ready)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", r.Health.Info)

		properties := v1.Group("/properties")
		{
			properties.GET("", r.Properties.List)
			properties.GET("/featured", r.Properties.Featured)
			properties.GET("/:id", r.Properties.Get)
		}

		leads := v1.Group("/leads")
		{
			leads.POST("/buyers", r.Leads.SubmitBuyer)
			leads.POST("/owners", r.Leads.SubmitOwner)
			leads.POST("/contacts", r.Leads.SubmitContact)
		}

		admin := v1.Group("/admin", middleware.Authenticate(verifier), middleware.RequireAdmin())
		{
			admin.POST("/properties", r.Properties.Create)
			admin.PUT("/properties/:id", r.Properties.Update)
			admin.PATCH("/properties/:id", r.Properties.Update)
			admin.DELETE("/properties/:id", r.Properties.Delete)
			admin.PUT("/properties/:id/featured", r.Properties.SetFeatured)

			admin.POST("/drafts", r.Drafts.Open)
			admin.GET("/drafts/:id", r.Drafts.Get)
			admin.PATCH("/drafts/:id", r.Drafts.Patch)
			admin.DELETE("/drafts/:id", r.Drafts.Close)
			admin.POST("/drafts/:id/reset", r.Drafts.Reset)
			admin.POST("/drafts/:id/files", r.Drafts.AddFiles)
			admin.DELETE("/drafts/:id/files/:kind/:index", r.Drafts.RemovePendingFile)
			admin.DELETE("/drafts/:id/media", r.Drafts.RemoveMedia)
			admin.POST("/drafts/:id/submit", r.Drafts.Submit)

			admin.GET("/leads/:kind", r.Leads.List)
			admin.POST("/migrations/legacy-types", r.Properties.MigrateLegacyTypes)
		}
	}
}
