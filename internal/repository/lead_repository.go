package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/docstore"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
)

// LeadRepository defines the data access operations for inquiries.
// Leads are append-only: there is no update or delete.
type LeadRepository interface {
	// Create stores lead in its kind's collection and fills in its metadata.
	Create(ctx context.Context, lead models.Lead) error

	// List returns every lead of kind, newest first.
	List(ctx context.Context, kind models.LeadKind) ([]models.Lead, error)
}

// leadRepository is the concrete implementation of LeadRepository.
type leadRepository struct {
	store docstore.Store
	now   func() time.Time
}

// NewLeadRepository creates a new instance of LeadRepository.
func NewLeadRepository(store docstore.Store) LeadRepository {
	return &leadRepository{
		store: store,
		now:   defaultNow,
	}
}

func (r *leadRepository) Create(ctx context.Context, lead models.Lead) error {
	now := r.now()
	fields := lead.Fields()
	fields["createdAt"] = now
	fields["updatedAt"] = now

	id, err := r.store.Collection(lead.Kind().Collection()).Insert(ctx, fields)
	if err != nil {
		return fmt.Errorf("failed to store %s lead: %w", lead.Kind(), err)
	}

	meta := lead.Meta()
	meta.ID = id
	meta.UserType = lead.Kind()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	return nil
}

func (r *leadRepository) List(ctx context.Context, kind models.LeadKind) ([]models.Lead, error) {
	docs, err := r.store.Collection(kind.Collection()).Find(ctx, docstore.Query{OrderBy: newestFirst})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s leads: %w", kind, err)
	}

	leads := make([]models.Lead, 0, len(docs))
	for _, doc := range docs {
		lead := models.NewLead(kind)
		if lead == nil {
			return nil, fmt.Errorf("unknown lead kind %q", kind)
		}
		if err := decodeFields(doc.Fields, lead); err != nil {
			return nil, fmt.Errorf("failed to decode %s lead %s: %w", kind, doc.ID, err)
		}

		meta := lead.Meta()
		meta.ID = doc.ID
		meta.UserType = kind
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = r.now()
		}
		if meta.UpdatedAt.IsZero() {
			meta.UpdatedAt = meta.CreatedAt
		}
		leads = append(leads, lead)
	}
	return leads, nil
}
