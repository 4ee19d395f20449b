package form

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/cache"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/docstore"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/media"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/notify"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/repository"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

// flakyPersister fails every call while err is set.
type flakyPersister struct {
	Persister
	mu  sync.Mutex
	err error
}

func (f *flakyPersister) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *flakyPersister) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *flakyPersister) Create(ctx context.Context, p models.Property) (*models.Property, error) {
	if err := f.failure(); err != nil {
		return nil, err
	}
	return f.Persister.Create(ctx, p)
}

func (f *flakyPersister) Replace(ctx context.Context, id string, p models.Property) (*models.Property, error) {
	if err := f.failure(); err != nil {
		return nil, err
	}
	return f.Persister.Replace(ctx, id, p)
}

// gatedUploader blocks every upload until release is closed.
type gatedUploader struct {
	media.Uploader
	entered chan struct{}
	release chan struct{}
}

func (g *gatedUploader) Upload(ctx context.Context, f media.File, key string) (string, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.Uploader.Upload(ctx, f, key)
}

type testEnv struct {
	deps      Deps
	svc       services.PropertyService
	uploader  *media.MemoryUploader
	sink      *notify.Recorder
	persister *flakyPersister
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	builder := models.NewBuilder(models.Defaults{City: "Cali"})
	repo := repository.NewPropertyRepository(docstore.NewMemoryStore())
	svc := services.NewPropertyService(repo, builder, cache.NewMemory(), services.PropertyServiceConfig{MaxPageSize: 50}, logger.Nop())

	env := &testEnv{
		svc:       svc,
		uploader:  media.NewMemoryUploader("https://cdn.test"),
		sink:      &notify.Recorder{},
		persister: &flakyPersister{Persister: svc},
	}
	env.deps = Deps{
		Builder:   builder,
		Persister: env.persister,
		Uploader:  env.uploader,
		Sink:      env.sink,
		Log:       logger.Nop(),
	}
	return env
}

func fillRequired(p *models.Property) {
	p.Title = "Casa en Ciudad Jardín"
	p.Address = "Cra 105 # 15-20"
	p.Zone = "Ciudad Jardín"
	p.Price = 850000000
}

func image(name string) media.File {
	return media.File{Name: name, ContentType: "image/jpeg", Data: []byte(name)}
}

func notificationKinds(r *notify.Recorder) []string {
	var kinds []string
	for _, n := range r.Notifications() {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func TestController_CreateModeDefaults(t *testing.T) {
	env := setupEnv(t)
	c := NewCreate(env.deps)

	draft := c.Draft()
	assert.Equal(t, ModeCreate, c.Mode())
	assert.Equal(t, StatePristine, c.State())
	assert.Equal(t, models.TypeHouse, draft.Type)
	assert.Equal(t, models.StatusAvailable, draft.Status)
	assert.Equal(t, "Cali", draft.City)
}

func TestController_ToggleBackIsPristine(t *testing.T) {
	env := setupEnv(t)
	c := NewCreate(env.deps)

	require.NoError(t, c.Update(func(p *models.Property) { p.Featured = true }))
	assert.Equal(t, StateDirty, c.State())

	require.NoError(t, c.Update(func(p *models.Property) { p.Featured = false }))
	assert.Equal(t, StatePristine, c.State())
}

func TestController_EmptyListEqualsNoList(t *testing.T) {
	env := setupEnv(t)
	c := NewCreate(env.deps)

	require.NoError(t, c.Update(func(p *models.Property) { p.Amenities = append(p.Amenities, "piscina") }))
	assert.Equal(t, StateDirty, c.State())

	require.NoError(t, c.Update(func(p *models.Property) { p.Amenities = p.Amenities[:0] }))
	assert.Equal(t, StatePristine, c.State())
}

func TestController_PendingFilesAreTracked(t *testing.T) {
	env := setupEnv(t)
	c := NewCreate(env.deps)

	require.NoError(t, c.AddFiles(media.KindImages, image("a.jpg"), image("b.jpg")))
	assert.Equal(t, StateDirty, c.State())
	assert.Len(t, c.Pending(media.KindImages), 2)

	require.NoError(t, c.RemovePendingFile(media.KindImages, 0))
	assert.Equal(t, []media.File{image("b.jpg")}, c.Pending(media.KindImages))
	assert.ErrorIs(t, c.RemovePendingFile(media.KindImages, 5), ErrFileNotFound)

	require.NoError(t, c.RemovePendingFile(media.KindImages, 0))
	assert.Equal(t, StatePristine, c.State())

	assert.ErrorIs(t, c.AddFiles(media.Kind("audio"), image("x.mp3")), ErrUnknownMediaKind)
}

func TestController_ExchangeClearedWhenPermutaUnset(t *testing.T) {
	env := setupEnv(t)
	c := NewCreate(env.deps)

	require.NoError(t, c.Update(func(p *models.Property) {
		p.PaymentMethods = []string{"contado", models.PaymentExchange}
		p.Exchange = &models.ExchangeTerms{Description: "Apartamento en Bogotá"}
	}))
	require.NotNil(t, c.Draft().Exchange)

	require.NoError(t, c.Update(func(p *models.Property) { p.PaymentMethods = []string{"contado"} }))
	assert.Nil(t, c.Draft().Exchange)
}

func TestController_ApplyPatch(t *testing.T) {
	env := setupEnv(t)
	existing := models.Property{ID: "p1", Title: "Lote", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewEdit(env.deps, existing)

	require.NoError(t, c.ApplyPatch([]byte(`{"title": "Lote esquinero", "id": "other", "bedrooms": 3}`)))
	draft := c.Draft()
	assert.Equal(t, "Lote esquinero", draft.Title)
	assert.Equal(t, "p1", draft.ID)
	assert.Equal(t, existing.CreatedAt, draft.CreatedAt)
	require.NotNil(t, draft.Bedrooms)
	assert.Equal(t, 3, *draft.Bedrooms)

	err := c.ApplyPatch([]byte(`{"colour": "blue"}`))
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "body")
}

func TestController_RemoveMediaAndDiscard(t *testing.T) {
	env := setupEnv(t)
	c := NewEdit(env.deps, models.Property{ID: "p1", Images: []string{"u1", "u2"}})

	removed, err := c.RemoveMedia(media.KindImages, "u1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"u2"}, c.Draft().Images)
	assert.Equal(t, StateDirty, c.State())

	removed, err = c.RemoveMedia(media.KindImages, "missing")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, c.Discard())
	assert.Equal(t, []string{"u1", "u2"}, c.Draft().Images)
	assert.Equal(t, StatePristine, c.State())
}

func TestController_SubmitRequiresFieldsBeforeUploading(t *testing.T) {
	env := setupEnv(t)
	c := NewCreate(env.deps)
	require.NoError(t, c.AddFiles(media.KindImages, image("a.jpg")))

	report, err := c.Submit(context.Background())

	assert.Nil(t, report)
	var failure *services.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, services.ClassValidation, failure.Class)

	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, key := range []string{"title", "address", "price", "zone"} {
		assert.Contains(t, verr.Fields, key)
	}
	assert.Empty(t, env.uploader.Objects())
	assert.Equal(t, StateDirty, c.State())
}

func TestController_SubmitCreateSwitchesToEdit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	c := NewCreate(env.deps)
	require.NoError(t, c.Update(fillRequired))

	report, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Created)
	require.NotNil(t, report.Property)
	id := report.Property.ID
	assert.NotEmpty(t, id)
	assert.Equal(t, ModeEdit, c.Mode())
	assert.Equal(t, StatePristine, c.State())

	require.NoError(t, c.Update(func(p *models.Property) { p.Price = 900000000 }))
	report, err = c.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, report.Created)
	assert.Equal(t, id, report.Property.ID)

	all, err := env.svc.List(ctx, repository.Filters{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(900000000), all[0].Price)
}

func TestController_SubmitToleratesPartialUploadFailure(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	draft := models.Property{Images: []string{"https://cdn.test/old.jpg"}}
	fillRequired(&draft)
	existing, err := env.svc.Create(ctx, draft)
	require.NoError(t, err)

	env.uploader.FailFile("bad-1.jpg", errors.New("network down"))
	env.uploader.FailFile("bad-2.jpg", errors.New("quota exceeded"))

	c := NewEdit(env.deps, *existing)
	require.NoError(t, c.AddFiles(media.KindImages, image("bad-1.jpg"), image("good.jpg"), image("bad-2.jpg")))

	report, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, report.PartialFailure())
	require.Len(t, report.Failed, 2)
	assert.Equal(t, "bad-1.jpg", report.Failed[0].Name)
	require.Len(t, report.Uploaded[media.KindImages], 1)

	stored, err := env.svc.Get(ctx, existing.ID)
	require.NoError(t, err)
	require.Len(t, stored.Images, 2)
	assert.Equal(t, "https://cdn.test/old.jpg", stored.Images[0])
	assert.True(t, strings.HasSuffix(stored.Images[1], "-good.jpg"))

	assert.Contains(t, notificationKinds(env.sink), notify.KindUploadPartial)
	assert.Empty(t, c.Pending(media.KindImages))
	assert.Equal(t, StatePristine, c.State())
}

func TestController_SubmitFailureKeepsDirtyAndUploadedMedia(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	c := NewCreate(env.deps)
	require.NoError(t, c.Update(fillRequired))
	require.NoError(t, c.AddFiles(media.KindVideos, media.File{Name: "tour.mp4", Data: []byte("v")}))

	env.persister.setErr(docstore.ErrUnavailable)
	_, err := c.Submit(ctx)

	var failure *services.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, services.ClassNetwork, failure.Class)
	assert.Equal(t, StateDirty, c.State())
	assert.Equal(t, ModeCreate, c.Mode())
	assert.Empty(t, c.Pending(media.KindVideos))
	require.Len(t, c.Draft().Videos, 1)
	assert.Contains(t, notificationKinds(env.sink), notify.KindSubmitFailed)

	env.persister.setErr(nil)
	report, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Property.Videos, 1)
	assert.Len(t, env.uploader.Objects(), 1, "retry must not upload again")
}

func TestController_ReentrantSubmitIsRejected(t *testing.T) {
	env := setupEnv(t)
	gate := &gatedUploader{
		Uploader: env.uploader,
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	env.deps.Uploader = gate

	c := NewCreate(env.deps)
	require.NoError(t, c.Update(fillRequired))
	require.NoError(t, c.AddFiles(media.KindImages, image("a.jpg")))

	type result struct {
		report *SubmitReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := c.Submit(context.Background())
		done <- result{report, err}
	}()

	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never started uploading")
	}

	assert.Equal(t, StateSubmitting, c.State())
	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.ErrorIs(t, c.Update(func(p *models.Property) { p.Title = "x" }), ErrSubmitInFlight)

	close(gate.release)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.report.Created)
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never finished")
	}
	assert.Equal(t, StatePristine, c.State())
	assert.Equal(t, "Casa en Ciudad Jardín", c.Draft().Title)
}
