package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/docstore"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
)

// PropertiesCollection is the collection listings are stored in.
const PropertiesCollection = "properties"

// ErrNotFound is returned by writes that target a missing document.
var ErrNotFound = docstore.ErrNotFound

// Filters narrows a property query. Zero values impose no constraint.
type Filters struct {
	City     string
	Type     string
	Status   string
	MinPrice *int64
	MaxPrice *int64
	Featured *bool
}

// InvertedPriceRange reports whether the range can match nothing.
func (f Filters) InvertedPriceRange() bool {
	return f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice
}

// Params returns the filters as a flat map, used for cache keys and logs.
func (f Filters) Params() map[string]interface{} {
	params := map[string]interface{}{}
	if f.City != "" {
		params["city"] = f.City
	}
	if f.Type != "" {
		params["type"] = f.Type
	}
	if f.Status != "" {
		params["status"] = f.Status
	}
	if f.MinPrice != nil {
		params["minPrice"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		params["maxPrice"] = *f.MaxPrice
	}
	if f.Featured != nil {
		params["featured"] = *f.Featured
	}
	return params
}

// PropertyRepository defines the data access operations for listings.
type PropertyRepository interface {
	// GetAll returns every property, newest first.
	GetAll(ctx context.Context) ([]models.Property, error)

	// GetByID returns the property with the given id.
	// Returns nil, nil if it does not exist.
	GetByID(ctx context.Context, id string) (*models.Property, error)

	// GetWithFilters returns the properties matching every set filter, newest
	// first. An inverted price range yields an empty slice, not an error.
	GetWithFilters(ctx context.Context, f Filters) ([]models.Property, error)

	// Create stores p with fresh timestamps and returns it with its new id.
	Create(ctx context.Context, p models.Property) (*models.Property, error)

	// Update merges patch into the stored property and refreshes updatedAt.
	// Returns ErrNotFound if the property does not exist.
	Update(ctx context.Context, id string, patch models.PropertyPatch) error

	// Delete permanently removes the property.
	// Returns ErrNotFound if the property does not exist.
	Delete(ctx context.Context, id string) error

	// Subscribe delivers the full filtered result to fn now and after every
	// change, until the returned func is called or ctx ends.
	Subscribe(ctx context.Context, f Filters, fn func([]models.Property, error)) (func(), error)

	// MigrateLegacyTypes rewrites stored legacy type labels to their
	// canonical form and returns how many documents changed.
	MigrateLegacyTypes(ctx context.Context) (int, error)
}

// propertyRepository is the concrete implementation of PropertyRepository.
type propertyRepository struct {
	coll docstore.Collection
	now  func() time.Time
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(store docstore.Store) PropertyRepository {
	return &propertyRepository{
		coll: store.Collection(PropertiesCollection),
		now:  defaultNow,
	}
}

// defaultNow is truncated to what every backend can store exactly.
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

var newestFirst = []docstore.Order{{Field: "createdAt", Desc: true}}

func (r *propertyRepository) GetAll(ctx context.Context) ([]models.Property, error) {
	docs, err := r.coll.Find(ctx, docstore.Query{OrderBy: newestFirst})
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return r.decodeAll(docs)
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	doc, err := r.coll.Get(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get property %s: %w", id, err)
	}

	p, err := r.decode(*doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepository) GetWithFilters(ctx context.Context, f Filters) ([]models.Property, error) {
	if f.InvertedPriceRange() {
		return []models.Property{}, nil
	}

	docs, err := r.coll.Find(ctx, filterQuery(f))
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	return r.decodeAll(docs)
}

func (r *propertyRepository) Create(ctx context.Context, p models.Property) (*models.Property, error) {
	now := r.now()
	fields := p.Fields()
	fields["createdAt"] = now
	fields["updatedAt"] = now

	id, err := r.coll.Insert(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	created := p.Clone()
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (r *propertyRepository) Update(ctx context.Context, id string, patch models.PropertyPatch) error {
	fields := make(map[string]interface{}, len(patch.Set)+len(patch.Unset)+1)
	for k, v := range patch.Set {
		fields[k] = v
	}
	for _, k := range patch.Unset {
		fields[k] = docstore.DeleteField
	}
	delete(fields, "id")
	delete(fields, "createdAt")
	fields["updatedAt"] = r.now()

	if err := r.coll.Merge(ctx, id, fields); err != nil {
		return fmt.Errorf("failed to update property %s: %w", id, err)
	}
	return nil
}

func (r *propertyRepository) Delete(ctx context.Context, id string) error {
	if err := r.coll.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete property %s: %w", id, err)
	}
	return nil
}

func (r *propertyRepository) Subscribe(ctx context.Context, f Filters, fn func([]models.Property, error)) (func(), error) {
	unsubscribe, err := r.coll.Watch(ctx, filterQuery(f), func(docs []docstore.Document, err error) {
		if err != nil {
			fn(nil, fmt.Errorf("failed to refresh properties: %w", err))
			return
		}
		fn(r.decodeAll(docs))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to properties: %w", err)
	}
	return unsubscribe, nil
}

func (r *propertyRepository) MigrateLegacyTypes(ctx context.Context) (int, error) {
	var legacy []interface{}
	for _, t := range models.PropertyTypes {
		for _, alias := range models.LegacyAliases(t) {
			legacy = append(legacy, alias)
		}
	}

	docs, err := r.coll.Find(ctx, docstore.Query{Where: []docstore.Predicate{docstore.In("type", legacy...)}})
	if err != nil {
		return 0, fmt.Errorf("failed to find legacy properties: %w", err)
	}

	migrated := 0
	for _, doc := range docs {
		raw, _ := doc.Fields["type"].(string)
		canonical := models.NormalizeType(raw)
		if err := r.coll.Merge(ctx, doc.ID, map[string]interface{}{"type": string(canonical)}); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			return migrated, fmt.Errorf("failed to migrate property %s: %w", doc.ID, err)
		}
		migrated++
	}
	return migrated, nil
}

// filterQuery turns filters into a conjunctive query ordered newest first.
// A canonical type also matches its legacy labels.
func filterQuery(f Filters) docstore.Query {
	q := docstore.Query{OrderBy: newestFirst}

	if f.City != "" {
		q.Where = append(q.Where, docstore.Eq("city", f.City))
	}
	if f.Type != "" {
		canonical := models.NormalizeType(f.Type)
		values := []interface{}{string(canonical)}
		for _, alias := range models.LegacyAliases(canonical) {
			values = append(values, alias)
		}
		q.Where = append(q.Where, docstore.In("type", values...))
	}
	if f.Status != "" {
		q.Where = append(q.Where, docstore.Eq("status", f.Status))
	}
	if f.MinPrice != nil {
		q.Where = append(q.Where, docstore.Gte("price", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		q.Where = append(q.Where, docstore.Lte("price", *f.MaxPrice))
	}
	if f.Featured != nil {
		q.Where = append(q.Where, docstore.Eq("featured", *f.Featured))
	}
	return q
}

func (r *propertyRepository) decodeAll(docs []docstore.Document) ([]models.Property, error) {
	properties := make([]models.Property, 0, len(docs))
	for _, doc := range docs {
		p, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, nil
}

// decode maps a stored document to a Property, applying the read-time
// normalization: legacy type labels, default type and status, and
// missing timestamps.
func (r *propertyRepository) decode(doc docstore.Document) (models.Property, error) {
	var p models.Property
	if err := decodeFields(doc.Fields, &p); err != nil {
		return models.Property{}, fmt.Errorf("failed to decode property %s: %w", doc.ID, err)
	}

	p.ID = doc.ID
	p.Type = models.NormalizeType(string(p.Type))
	p.Status = models.NormalizeStatus(string(p.Status))

	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return p, nil
}
