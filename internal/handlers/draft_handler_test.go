package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/errors"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/form"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/media"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/notify"
)

// uploadFiles posts a multipart form with one part per file name.
func (e *testEnv) uploadFiles(t *testing.T, draftID string, files map[string][]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, names := range files {
		for _, name := range names {
			part, err := mw.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = part.Write([]byte("content of " + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/drafts/"+draftID+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.adminToken)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) openDraft(t *testing.T, body interface{}) DraftResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/admin/drafts", e.adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[DraftResponse](t, w)
}

func TestDraftHandler_CreateFlow(t *testing.T) {
	env := setupTestEnv(t)

	opened := env.openDraft(t, nil)
	assert.Equal(t, form.ModeCreate, opened.Mode)
	assert.Equal(t, form.StatePristine, opened.State)
	assert.Equal(t, "Cali", opened.Draft.City)

	w := env.do(t, http.MethodPatch, "/api/v1/admin/drafts/"+opened.ID, env.adminToken, validProperty("Casa con piscina", 820000000))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, form.StateDirty, decode[DraftResponse](t, w).State)

	w = env.uploadFiles(t, opened.ID, map[string][]string{
		"images": {"fachada.jpg", "cocina.jpg"},
		"videos": {"recorrido.mp4"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	withFiles := decode[DraftResponse](t, w)
	assert.Len(t, withFiles.Pending[media.KindImages], 2)
	assert.Len(t, withFiles.Pending[media.KindVideos], 1)
	assert.Positive(t, withFiles.Pending[media.KindImages][0].Size)

	env.uploader.FailFile("cocina.jpg", errors.New("connection reset"))

	w = env.do(t, http.MethodPost, "/api/v1/admin/drafts/"+opened.ID+"/submit", env.adminToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[SubmitResponse](t, w)

	require.NotNil(t, resp.Report.Property)
	assert.True(t, resp.Report.Created)
	require.Len(t, resp.Report.Failed, 1)
	assert.Equal(t, "cocina.jpg", resp.Report.Failed[0].Name)
	assert.Len(t, resp.Report.Uploaded[media.KindImages], 1)
	assert.Len(t, resp.Report.Uploaded[media.KindVideos], 1)

	assert.Equal(t, form.ModeEdit, resp.Draft.Mode)
	assert.Equal(t, form.StatePristine, resp.Draft.State)
	assert.Empty(t, resp.Draft.Pending[media.KindImages])
	require.Len(t, resp.Draft.Draft.Images, 1)
	assert.True(t, strings.HasPrefix(resp.Draft.Draft.Images[0], "https://cdn.example.com/properties/images/"))

	w = env.do(t, http.MethodGet, "/api/v1/properties/"+resp.Report.Property.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stored := decode[PropertyResponse](t, w).Property
	assert.Equal(t, "Casa con piscina", stored.Title)
	assert.Equal(t, resp.Draft.Draft.Images, stored.Images)
	assert.Len(t, stored.Videos, 1)

	var kinds []string
	for _, n := range env.sink.Notifications() {
		kinds = append(kinds, n.Kind)
	}
	assert.Contains(t, kinds, notify.KindUploadPartial)
}

func TestDraftHandler_SubmitRejectsIncompleteDraft(t *testing.T) {
	env := setupTestEnv(t)
	opened := env.openDraft(t, nil)

	w := env.uploadFiles(t, opened.ID, map[string][]string{"images": {"fachada.jpg"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/drafts/"+opened.ID+"/submit", env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail := errorOf(t, w)
	assert.Equal(t, apierrors.ErrValidation, detail.Code)
	assert.Contains(t, detail.Details, "title")

	assert.Empty(t, env.uploader.Objects(), "nothing is uploaded before validation passes")

	w = env.do(t, http.MethodGet, "/api/v1/admin/drafts/"+opened.ID, env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	after := decode[DraftResponse](t, w)
	assert.Equal(t, form.StateDirty, after.State)
	assert.Len(t, after.Pending[media.KindImages], 1)
}

func TestDraftHandler_EditFlow(t *testing.T) {
	env := setupTestEnv(t)
	body := validProperty("Apartamento San Fernando", 380000000)
	body["images"] = []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}
	created := env.seed(t, body)

	opened := env.openDraft(t, OpenDraftRequest{PropertyID: created.ID})
	assert.Equal(t, form.ModeEdit, opened.Mode)
	assert.Equal(t, created.ID, opened.Draft.ID)

	w := env.do(t, http.MethodDelete, "/api/v1/admin/drafts/"+opened.ID+"/media", env.adminToken, RemoveMediaRequest{
		Kind: media.KindImages,
		URL:  "https://cdn.example.com/a.jpg",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"https://cdn.example.com/b.jpg"}, decode[DraftResponse](t, w).Draft.Images)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/drafts/"+opened.ID+"/media", env.adminToken, RemoveMediaRequest{
		Kind: media.KindImages,
		URL:  "https://cdn.example.com/a.jpg",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/admin/drafts/"+opened.ID, env.adminToken, map[string]interface{}{"price": 395000000})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/drafts/"+opened.ID+"/submit", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[SubmitResponse](t, w)
	assert.False(t, resp.Report.Created)
	assert.Equal(t, created.ID, resp.Report.Property.ID)
	assert.Equal(t, int64(395000000), resp.Report.Property.Price)
	assert.Equal(t, []string{"https://cdn.example.com/b.jpg"}, resp.Report.Property.Images)
}

func TestDraftHandler_OpenEditMissingProperty(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/admin/drafts", env.adminToken, OpenDraftRequest{PropertyID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, env.registry.Len())
}

func TestDraftHandler_PendingFiles(t *testing.T) {
	env := setupTestEnv(t)
	opened := env.openDraft(t, nil)

	w := env.uploadFiles(t, opened.ID, map[string][]string{"images": {"uno.jpg", "dos.jpg"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/drafts/"+opened.ID+"/files/images/0", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[DraftResponse](t, w).Pending[media.KindImages]
	require.Len(t, pending, 1)
	assert.Equal(t, "dos.jpg", pending[0].Name)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/drafts/"+opened.ID+"/files/images/5", env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/drafts/"+opened.ID+"/files/docs/0", env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/drafts/"+opened.ID+"/files/images/first", env.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.uploadFiles(t, opened.ID, map[string][]string{"documents": {"escritura.pdf"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/drafts/"+opened.ID+"/files", env.adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftHandler_ResetAndClose(t *testing.T) {
	env := setupTestEnv(t)
	opened := env.openDraft(t, nil)

	w := env.do(t, http.MethodPatch, "/api/v1/admin/drafts/"+opened.ID, env.adminToken, map[string]interface{}{"title": "Borrador"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/admin/drafts/"+opened.ID, env.adminToken, map[string]interface{}{"unknownField": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/drafts/"+opened.ID+"/reset", env.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	reset := decode[DraftResponse](t, w)
	assert.Equal(t, form.StatePristine, reset.State)
	assert.Empty(t, reset.Draft.Title)

	w = env.do(t, http.MethodDelete, "/api/v1/admin/drafts/"+opened.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/admin/drafts/"+opened.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftHandler_RequiresAdmin(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/admin/drafts", env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, env.registry.Len())
}
