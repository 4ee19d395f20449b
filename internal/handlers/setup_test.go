package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/auth"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/cache"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/config"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/docstore"
	apierrors "github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/errors"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/form"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/media"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/middleware"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/notify"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/repository"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testMaxBody   = 64 << 10
	testMaxUpload = 8 << 20
)

// testEnv is the whole HTTP stack on in-memory backends.
type testEnv struct {
	router     *gin.Engine
	store      *docstore.MemoryStore
	uploader   *media.MemoryUploader
	sink       *notify.Recorder
	registry   *form.Registry
	properties services.PropertyService
	adminToken string
	userToken  string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()

	store := docstore.NewMemoryStore()
	uploader := media.NewMemoryUploader("https://cdn.example.com")
	sink := &notify.Recorder{}
	builder := models.NewBuilder(models.Defaults{City: "Cali"})

	properties := services.NewPropertyService(
		repository.NewPropertyRepository(store),
		builder,
		cache.NewMemory(),
		services.PropertyServiceConfig{CacheTTL: time.Minute, MaxPageSize: 50},
		log,
	)
	leads := services.NewLeadService(repository.NewLeadRepository(store), sink, log)
	registry := form.NewRegistry(form.Deps{
		Builder:   builder,
		Persister: properties,
		Uploader:  uploader,
		Sink:      sink,
		Log:       log,
	}, time.Hour, log)

	verifier, err := auth.NewVerifier(config.AuthConfig{
		JWTSecret:   "handler-test-secret",
		AdminEmails: []string{"agent@example.com"},
	})
	require.NoError(t, err)
	adminToken, err := verifier.Issue("admin-1", "agent@example.com", "", time.Hour)
	require.NoError(t, err)
	userToken, err := verifier.Issue("user-1", "visitor@example.com", "", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(log), middleware.Recovery(log))
	router.Use(middleware.BodyLimit(testMaxBody, testMaxUpload))
	Routes{
		Health:     NewHealthHandler(store, "memory", "test"),
		Properties: NewPropertyHandler(properties, 2),
		Leads:      NewLeadHandler(leads),
		Drafts:     NewDraftHandler(registry, properties),
	}.Register(router, verifier)

	return &testEnv{
		router:     router,
		store:      store,
		uploader:   uploader,
		sink:       sink,
		registry:   registry,
		properties: properties,
		adminToken: adminToken,
		userToken:  userToken,
	}
}

// do sends a JSON request. A non-empty token is sent as a bearer token.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) apierrors.ErrorDetail {
	t.Helper()
	return decode[apierrors.ErrorResponse](t, w).Error
}

func validProperty(title string, price int64) map[string]interface{} {
	return map[string]interface{}{
		"title":   title,
		"address": "Calle 5 # 10-20",
		"zone":    "Norte",
		"price":   price,
	}
}

// seed creates a property through the admin API and returns it.
func (e *testEnv) seed(t *testing.T, body map[string]interface{}) models.Property {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/admin/properties", e.adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return *decode[PropertyResponse](t, w).Property
}
