package services

import (
	"context"
	"errors"
	"time"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/cache"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/repository"
)

// CachePrefix is shared by every cached property query. Any mutation drops
// all of them.
const CachePrefix = "properties:"

// Service-level errors
var (
	ErrPropertyNotFound = errors.New("property not found")
)

// PropertyServiceConfig tunes caching and paging.
type PropertyServiceConfig struct {
	CacheTTL    time.Duration
	MaxPageSize int
}

// PropertyService defines the listing operations used by the HTTP surface,
// the admin form and the CLI.
type PropertyService interface {
	// List returns the properties matching f, newest first.
	List(ctx context.Context, f repository.Filters) ([]models.Property, error)

	// Get returns one property.
	// Returns ErrPropertyNotFound if it does not exist.
	Get(ctx context.Context, id string) (*models.Property, error)

	// Featured returns the featured listings.
	Featured(ctx context.Context) ([]models.Property, error)

	// Paginate returns one page of the filtered listings. pageSize is capped
	// at the configured maximum.
	Paginate(ctx context.Context, f repository.Filters, page, pageSize int) (Page[models.Property], error)

	// Create validates p, fills defaults and stores it.
	Create(ctx context.Context, p models.Property) (*models.Property, error)

	// Replace validates p and overwrites the stored record with it.
	Replace(ctx context.Context, id string, p models.Property) (*models.Property, error)

	// Update applies a JSON merge patch and returns the stored result.
	Update(ctx context.Context, id string, patch []byte) (*models.Property, error)

	// Delete permanently removes a property.
	Delete(ctx context.Context, id string) error

	// SetFeatured flags or unflags a property as featured.
	SetFeatured(ctx context.Context, id string, featured bool) (*models.Property, error)

	// Subscribe streams full snapshots of the filtered listings.
	Subscribe(ctx context.Context, f repository.Filters, fn func([]models.Property, error)) (func(), error)

	// MigrateLegacyTypes rewrites legacy type labels in storage.
	MigrateLegacyTypes(ctx context.Context) (int, error)
}

// propertyService is the concrete implementation of PropertyService.
type propertyService struct {
	repo    repository.PropertyRepository
	builder *models.Builder
	cache   cache.Cache
	cfg     PropertyServiceConfig
	log     *logger.Logger
}

// NewPropertyService creates a new instance of PropertyService.
func NewPropertyService(repo repository.PropertyRepository, builder *models.Builder, c cache.Cache, cfg PropertyServiceConfig, log *logger.Logger) PropertyService {
	if c == nil {
		c = cache.Nop{}
	}
	return &propertyService{
		repo:    repo,
		builder: builder,
		cache:   c,
		cfg:     cfg,
		log:     log.WithComponent("property_service"),
	}
}

func (s *propertyService) List(ctx context.Context, f repository.Filters) ([]models.Property, error) {
	if f.InvertedPriceRange() {
		s.log.Debug("Inverted price range, returning no properties", f.Params())
		return []models.Property{}, nil
	}

	key := cache.Key(CachePrefix+"filter", f.Params())
	var cached []models.Property
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	s.log.Info("Querying properties", f.Params())

	gen, cacheable := s.cacheGeneration(ctx)
	properties, err := s.repo.GetWithFilters(ctx, f)
	if err != nil {
		s.log.Error("Failed to query properties", err, f.Params())
		return nil, Classify("list properties", err)
	}

	if cacheable {
		s.cacheSet(ctx, key, properties, gen)
	}
	return properties, nil
}

func (s *propertyService) Get(ctx context.Context, id string) (*models.Property, error) {
	key := cache.Key(CachePrefix+"get", map[string]interface{}{"id": id})
	var cached models.Property
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	gen, cacheable := s.cacheGeneration(ctx)
	property, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to get property", err, map[string]interface{}{
			"property_id": id,
		})
		return nil, Classify("get property", err)
	}

	// Repository returns nil, nil when the property does not exist
	if property == nil {
		s.log.Debug("Property not found", map[string]interface{}{
			"property_id": id,
		})
		return nil, ErrPropertyNotFound
	}

	if cacheable {
		s.cacheSet(ctx, key, property, gen)
	}
	return property, nil
}

func (s *propertyService) Featured(ctx context.Context) ([]models.Property, error) {
	featured := true
	return s.List(ctx, repository.Filters{Featured: &featured})
}

func (s *propertyService) Paginate(ctx context.Context, f repository.Filters, page, pageSize int) (Page[models.Property], error) {
	if s.cfg.MaxPageSize > 0 && pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	if page < 1 || pageSize < 1 {
		return Paginate([]models.Property(nil), page, pageSize)
	}

	properties, err := s.List(ctx, f)
	if err != nil {
		return Page[models.Property]{}, err
	}
	return Paginate(properties, page, pageSize)
}

func (s *propertyService) Create(ctx context.Context, p models.Property) (*models.Property, error) {
	built, err := s.builder.Build(p)
	if err != nil {
		s.log.Warn("Rejected property", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	created, err := s.repo.Create(ctx, built)
	if err != nil {
		s.log.Error("Failed to create property", err, map[string]interface{}{
			"title": built.Title,
		})
		return nil, Classify("create property", err)
	}

	s.invalidate(ctx)
	s.log.Info("Property created", map[string]interface{}{
		"property_id": created.ID,
		"title":       created.Title,
		"type":        created.Type,
	})
	return created, nil
}

func (s *propertyService) Replace(ctx context.Context, id string, p models.Property) (*models.Property, error) {
	built, err := s.builder.Build(p)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "replace property", id, models.FullPatch(&built))
}

func (s *propertyService) Update(ctx context.Context, id string, data []byte) (*models.Property, error) {
	patch, err := s.builder.Patch(data)
	if err != nil {
		s.log.Warn("Rejected property patch", map[string]interface{}{
			"property_id": id,
			"error":       err.Error(),
		})
		return nil, err
	}

	if patch.NeedsStored() {
		stored, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, Classify("update property", err)
		}
		if stored == nil {
			return nil, ErrPropertyNotFound
		}
		patch = patch.Reconcile(*stored)
	}
	return s.apply(ctx, "update property", id, patch)
}

func (s *propertyService) SetFeatured(ctx context.Context, id string, featured bool) (*models.Property, error) {
	patch := models.PropertyPatch{Set: map[string]interface{}{"featured": featured}}
	return s.apply(ctx, "feature property", id, patch)
}

func (s *propertyService) apply(ctx context.Context, op, id string, patch models.PropertyPatch) (*models.Property, error) {
	if err := s.repo.Update(ctx, id, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPropertyNotFound
		}
		s.log.Error("Failed to update property", err, map[string]interface{}{
			"property_id": id,
			"op":          op,
		})
		return nil, Classify(op, err)
	}
	s.invalidate(ctx)

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Classify(op, err)
	}
	if updated == nil {
		return nil, ErrPropertyNotFound
	}

	s.log.Info("Property updated", map[string]interface{}{
		"property_id": id,
		"op":          op,
		"keys":        patch.Keys(),
	})
	return updated, nil
}

func (s *propertyService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPropertyNotFound
		}
		s.log.Error("Failed to delete property", err, map[string]interface{}{
			"property_id": id,
		})
		return Classify("delete property", err)
	}

	s.invalidate(ctx)
	s.log.Info("Property deleted", map[string]interface{}{
		"property_id": id,
	})
	return nil
}

func (s *propertyService) Subscribe(ctx context.Context, f repository.Filters, fn func([]models.Property, error)) (func(), error) {
	unsubscribe, err := s.repo.Subscribe(ctx, f, func(properties []models.Property, err error) {
		if err != nil {
			fn(nil, Classify("watch properties", err))
			return
		}
		fn(properties, nil)
	})
	if err != nil {
		return nil, Classify("watch properties", err)
	}
	return unsubscribe, nil
}

func (s *propertyService) MigrateLegacyTypes(ctx context.Context) (int, error) {
	migrated, err := s.repo.MigrateLegacyTypes(ctx)
	if migrated > 0 {
		s.invalidate(ctx)
	}
	if err != nil {
		s.log.Error("Legacy type migration failed", err, map[string]interface{}{
			"migrated": migrated,
		})
		return migrated, Classify("migrate legacy types", err)
	}

	s.log.Info("Legacy type migration finished", map[string]interface{}{
		"migrated": migrated,
	})
	return migrated, nil
}

func (s *propertyService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn("Cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return false
	}
	return found
}

// cacheGeneration reads the invalidation counter before a backend fetch.
// Without it the result is not cached.
func (s *propertyService) cacheGeneration(ctx context.Context) (uint64, bool) {
	gen, err := s.cache.Generation(ctx, CachePrefix)
	if err != nil {
		s.log.Warn("Cache generation read failed", map[string]interface{}{
			"prefix": CachePrefix,
			"error":  err.Error(),
		})
		return 0, false
	}
	return gen, true
}

// cacheSet stores a fetched result unless a mutation invalidated the cache
// after the fetch started.
func (s *propertyService) cacheSet(ctx context.Context, key string, value interface{}, gen uint64) {
	stored, err := s.cache.SetIfGeneration(ctx, key, value, s.cfg.CacheTTL, CachePrefix, gen)
	if err != nil {
		s.log.Warn("Cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return
	}
	if !stored {
		s.log.Debug("Skipped cache write after concurrent invalidation", map[string]interface{}{
			"key": key,
		})
	}
}

func (s *propertyService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidatePrefix(ctx, CachePrefix); err != nil {
		s.log.Warn("Cache invalidation failed", map[string]interface{}{
			"prefix": CachePrefix,
			"error":  err.Error(),
		})
	}
}
