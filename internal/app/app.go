// Package app assembles the service from configuration. The HTTP server and
// the operator CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/auth"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/cache"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/config"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/database"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/docstore"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/form"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/handlers"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/media"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/middleware"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/notify"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/repository"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

// App holds every long-lived component.
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Store      docstore.Store
	Cache      cache.Cache
	Uploader   media.Uploader
	Sink       notify.Sink
	Verifier   *auth.Verifier
	Properties services.PropertyService
	Leads      services.LeadService
	Drafts     *form.Registry

	closers []func(context.Context) error
}

// New connects the configured backends and builds the services. Call Close
// when done.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	if err := a.init(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

// NewWithStore builds the services on an already open store. The store is
// not closed by Close.
func NewWithStore(ctx context.Context, cfg *config.Config, log *logger.Logger, store docstore.Store) (*App, error) {
	a := &App{Config: cfg, Log: log, Store: store}
	if err := a.init(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	c, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	a.Cache = c

	uploader, err := a.openUploader(ctx)
	if err != nil {
		return err
	}
	a.Uploader = uploader

	a.Sink = a.openSink()

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}
	a.Verifier = verifier

	builder := models.NewBuilder(models.Defaults{City: cfg.Listings.DefaultCity})
	a.Properties = services.NewPropertyService(
		repository.NewPropertyRepository(a.Store),
		builder,
		a.Cache,
		services.PropertyServiceConfig{
			CacheTTL:    cfg.Cache.TTL,
			MaxPageSize: cfg.Listings.MaxPageSize,
		},
		a.Log,
	)
	a.Leads = services.NewLeadService(repository.NewLeadRepository(a.Store), a.Sink, a.Log)
	a.Drafts = form.NewRegistry(form.Deps{
		Builder:   builder,
		Persister: a.Properties,
		Uploader:  a.Uploader,
		Sink:      a.Sink,
		Log:       a.Log,
	}, cfg.Drafts.TTL, a.Log)

	return nil
}

// OpenStore connects the document store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare document schema: %w", err)
		}
		log.Info("Document store connected", map[string]interface{}{
			"driver":   cfg.Store.Driver,
			"host":     cfg.Database.Host,
			"database": cfg.Database.Name,
			"pool_max": cfg.Database.PoolMax,
		})
		return docstore.NewPostgresStore(db, log), nil

	case config.StoreDriverMongo:
		store, err := docstore.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
		if err != nil {
			return nil, err
		}
		log.Info("Document store connected", map[string]interface{}{
			"driver":   cfg.Store.Driver,
			"database": cfg.Mongo.Database,
		})
		return store, nil

	case config.StoreDriverMemory:
		log.Warn("Using in-memory document store, data is lost on exit", nil)
		return docstore.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	switch a.Config.Cache.Driver {
	case config.CacheDriverRedis:
		r, err := cache.NewRedis(ctx, a.Config.Cache.RedisAddr, a.Config.Cache.RedisPassword, a.Config.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return r.Close() })
		return r, nil
	case config.CacheDriverNone:
		return cache.Nop{}, nil
	default:
		return cache.NewMemory(), nil
	}
}

func (a *App) openUploader(ctx context.Context) (media.Uploader, error) {
	if a.Config.Storage.Driver == config.StorageDriverS3 {
		return media.NewS3Uploader(ctx, a.Config.Storage)
	}
	return media.NewMemoryUploader(a.Config.Storage.PublicBaseURL), nil
}

func (a *App) openSink() notify.Sink {
	sinks := notify.Multi{notify.NewLogSink(a.Log)}
	if a.Config.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(a.Config.Notify.WebhookURL))
	}
	return sinks
}

// Router builds the HTTP handler with the standard middleware stack.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = a.Config.Server.MaxMultipartMemory
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.Log))
	router.Use(middleware.Recovery(a.Log))
	router.Use(middleware.CORS(a.Config.CORS.Origins))
	router.Use(middleware.BodyLimit(a.Config.Server.MaxBodyBytes, a.Config.Server.MaxUploadBytes))

	handlers.Routes{
		Health:     handlers.NewHealthHandler(a.Store, a.Config.Store.Driver, a.Config.Server.Env),
		Properties: handlers.NewPropertyHandler(a.Properties, a.Config.Listings.DefaultPageSize),
		Leads:      handlers.NewLeadHandler(a.Leads),
		Drafts:     handlers.NewDraftHandler(a.Drafts, a.Properties),
	}.Register(router, a.Verifier)

	return router
}

// Close stops the draft sweeper and releases backends in reverse order.
func (a *App) Close(ctx context.Context) error {
	if a.Drafts != nil {
		a.Drafts.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
