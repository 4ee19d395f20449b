package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/errors"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/form"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/media"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/middleware"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

// DraftHandler drives the admin property form. Each draft lives in the
// registry until it is closed or swept.
type DraftHandler struct {
	drafts     *form.Registry
	properties services.PropertyService
}

// NewDraftHandler creates a new DraftHandler instance.
func NewDraftHandler(drafts *form.Registry, properties services.PropertyService) *DraftHandler {
	return &DraftHandler{
		drafts:     drafts,
		properties: properties,
	}
}

// OpenDraftRequest opens an edit draft when PropertyID is set, a create
// draft otherwise.
type OpenDraftRequest struct {
	PropertyID string `json:"propertyId"`
}

// RemoveMediaRequest names a stored media URL to drop from the draft.
type RemoveMediaRequest struct {
	Kind media.Kind `json:"kind" binding:"required"`
	URL  string     `json:"url" binding:"required"`
}

// PendingFile describes a queued upload without its content.
type PendingFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// DraftResponse is the view of a draft returned by every draft route.
type DraftResponse struct {
	ID      string                       `json:"id"`
	Mode    form.Mode                    `json:"mode"`
	State   form.State                   `json:"state"`
	Draft   models.Property              `json:"draft"`
	Pending map[media.Kind][]PendingFile `json:"pending"`
}

// SubmitResponse is a finished submit together with the draft afterwards.
type SubmitResponse struct {
	Report *form.SubmitReport `json:"report"`
	Draft  DraftResponse      `json:"draft"`
}

func newDraftResponse(id string, ctrl *form.Controller) DraftResponse {
	pending := make(map[media.Kind][]PendingFile, len(media.Kinds))
	for _, kind := range media.Kinds {
		files := ctrl.Pending(kind)
		list := make([]PendingFile, 0, len(files))
		for _, f := range files {
			list = append(list, PendingFile{Name: f.Name, ContentType: f.ContentType, Size: len(f.Data)})
		}
		pending[kind] = list
	}
	return DraftResponse{
		ID:      id,
		Mode:    ctrl.Mode(),
		State:   ctrl.State(),
		Draft:   ctrl.Draft(),
		Pending: pending,
	}
}

// lookup returns the draft named by the :id parameter or answers 404.
func (h *DraftHandler) lookup(c *gin.Context) (string, *form.Controller, bool) {
	id := c.Param("id")
	ctrl, ok := h.drafts.Get(id)
	if !ok {
		apierrors.NotFound(c, "Draft not found")
		return "", nil, false
	}
	return id, ctrl, true
}

// draftError maps form errors onto responses.
func draftError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, form.ErrSubmitInFlight):
		apierrors.Conflict(c, "A submit is already in progress for this draft")
	case errors.Is(err, form.ErrUnknownMediaKind):
		apierrors.BadRequest(c, err.Error(), map[string]interface{}{"allowed": media.Kinds})
	case errors.Is(err, form.ErrFileNotFound):
		apierrors.NotFound(c, "Pending file not found")
	default:
		apierrors.FromError(c, op, err)
	}
}

// Open handles POST /api/v1/admin/drafts.
func (h *DraftHandler) Open(c *gin.Context) {
	var req OpenDraftRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			bindError(c, err, "Invalid draft body")
			return
		}
	}

	var (
		id   string
		ctrl *form.Controller
	)
	if req.PropertyID == "" {
		id, ctrl = h.drafts.Create()
	} else {
		prop, err := h.properties.Get(c.Request.Context(), req.PropertyID)
		if err != nil {
			apierrors.FromError(c, "open draft", err)
			return
		}
		id, ctrl = h.drafts.Edit(*prop)
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Draft opened", map[string]interface{}{
			"draft_id":    id,
			"mode":        ctrl.Mode(),
			"property_id": req.PropertyID,
		})
	}
	c.JSON(http.StatusCreated, newDraftResponse(id, ctrl))
}

// Get handles GET /api/v1/admin/drafts/:id.
func (h *DraftHandler) Get(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(id, ctrl))
}

// Patch handles PATCH /api/v1/admin/drafts/:id. The body is merged into
// the draft.
func (h *DraftHandler) Patch(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierrors.ReadFailed(c, err, "Could not read request body")
		return
	}
	if err := ctrl.ApplyPatch(body); err != nil {
		draftError(c, "patch draft", err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(id, ctrl))
}

// Reset handles POST /api/v1/admin/drafts/:id/reset. It throws away every
// unsaved change.
func (h *DraftHandler) Reset(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := ctrl.Discard(); err != nil {
		draftError(c, "reset draft", err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(id, ctrl))
}

// Close handles DELETE /api/v1/admin/drafts/:id.
func (h *DraftHandler) Close(c *gin.Context) {
	_, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}
	if ctrl.State() == form.StateSubmitting {
		apierrors.Conflict(c, "A submit is already in progress for this draft")
		return
	}
	h.drafts.Remove(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// AddFiles handles POST /api/v1/admin/drafts/:id/files. Files are read
// from the multipart fields "images" and "videos".
func (h *DraftHandler) AddFiles(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}

	mf, err := c.MultipartForm()
	if err != nil {
		apierrors.ReadFailed(c, err, "Expected a multipart form")
		return
	}

	added := 0
	for _, kind := range media.Kinds {
		headers := mf.File[string(kind)]
		if len(headers) == 0 {
			continue
		}
		files, err := readFiles(headers)
		if err != nil {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if err := ctrl.AddFiles(kind, files...); err != nil {
			draftError(c, "add files", err)
			return
		}
		added += len(files)
	}
	if added == 0 {
		apierrors.BadRequest(c, "No files in the images or videos fields", nil)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(id, ctrl))
}

func readFiles(headers []*multipart.FileHeader) ([]media.File, error) {
	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("could not open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", fh.Filename, err)
		}
		files = append(files, media.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// RemovePendingFile handles DELETE /api/v1/admin/drafts/:id/files/:kind/:index.
func (h *DraftHandler) RemovePendingFile(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		apierrors.BadRequest(c, "File index must be a number", nil)
		return
	}
	if err := ctrl.RemovePendingFile(media.Kind(c.Param("kind")), index); err != nil {
		draftError(c, "remove pending file", err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(id, ctrl))
}

// RemoveMedia handles DELETE /api/v1/admin/drafts/:id/media.
func (h *DraftHandler) RemoveMedia(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}

	var req RemoveMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, "Invalid media body")
		return
	}

	removed, err := ctrl.RemoveMedia(req.Kind, req.URL)
	if err != nil {
		draftError(c, "remove media", err)
		return
	}
	if !removed {
		apierrors.NotFound(c, "Media not found in draft")
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(id, ctrl))
}

// Submit handles POST /api/v1/admin/drafts/:id/submit. A stored listing
// answers 201 when it was created and 200 when it was updated, with any
// failed uploads listed in the report.
func (h *DraftHandler) Submit(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}

	report, err := ctrl.Submit(c.Request.Context())
	if err != nil {
		draftError(c, "submit property", err)
		return
	}

	status := http.StatusOK
	if report.Created {
		status = http.StatusCreated
	}
	c.JSON(status, SubmitResponse{
		Report: report,
		Draft:  newDraftResponse(id, ctrl),
	})
}
