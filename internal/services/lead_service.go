package services

import (
	"context"
	"fmt"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/notify"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/repository"
)

// LeadService handles the public inquiry forms. Leads are write-once: there
// is no update or delete.
type LeadService interface {
	// SubmitBuyer validates, stores and announces a buyer inquiry.
	SubmitBuyer(ctx context.Context, lead *models.BuyerLead) error

	// SubmitOwner validates, stores and announces an owner inquiry.
	SubmitOwner(ctx context.Context, lead *models.OwnerLead) error

	// SubmitContact validates, stores and announces a contact message.
	SubmitContact(ctx context.Context, lead *models.ContactLead) error

	// Submit dispatches on the lead's kind.
	Submit(ctx context.Context, lead models.Lead) error

	// List returns every lead of kind, newest first.
	List(ctx context.Context, kind models.LeadKind) ([]models.Lead, error)
}

// leadService is the concrete implementation of LeadService.
type leadService struct {
	repo      repository.LeadRepository
	sink      notify.Sink
	validator *structValidator
	log       *logger.Logger
}

// NewLeadService creates a new instance of LeadService.
func NewLeadService(repo repository.LeadRepository, sink notify.Sink, log *logger.Logger) LeadService {
	return &leadService{
		repo:      repo,
		sink:      sink,
		validator: newStructValidator(),
		log:       log.WithComponent("lead_service"),
	}
}

func (s *leadService) SubmitBuyer(ctx context.Context, lead *models.BuyerLead) error {
	return s.Submit(ctx, lead)
}

func (s *leadService) SubmitOwner(ctx context.Context, lead *models.OwnerLead) error {
	return s.Submit(ctx, lead)
}

func (s *leadService) SubmitContact(ctx context.Context, lead *models.ContactLead) error {
	return s.Submit(ctx, lead)
}

func (s *leadService) Submit(ctx context.Context, lead models.Lead) error {
	lead.Normalize()
	if err := s.validator.Struct(lead); err != nil {
		s.log.Warn("Rejected lead", map[string]interface{}{
			"kind":  lead.Kind(),
			"error": err.Error(),
		})
		return err
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		s.log.Error("Failed to store lead", err, map[string]interface{}{
			"kind": lead.Kind(),
		})
		return Classify(fmt.Sprintf("submit %s lead", lead.Kind()), err)
	}

	meta := lead.Meta()
	contact := lead.Contact()
	s.log.Info("Lead stored", map[string]interface{}{
		"kind":    lead.Kind(),
		"lead_id": meta.ID,
	})

	n := notify.Notification{
		Kind:     notify.KindLeadCreated,
		Severity: notify.SeverityInfo,
		Title:    fmt.Sprintf("New %s lead from %s", lead.Kind(), contact.Name),
		Fields: map[string]interface{}{
			"lead_id":   meta.ID,
			"lead_kind": string(lead.Kind()),
			"name":      contact.Name,
			"email":     contact.Email,
			"phone":     contact.Phone,
		},
		At: meta.CreatedAt,
	}
	if err := s.sink.Notify(ctx, n); err != nil {
		// The lead is already stored; a lost notification is not a failed submit.
		s.log.Error("Failed to send lead notification", err, map[string]interface{}{
			"kind":    lead.Kind(),
			"lead_id": meta.ID,
		})
	}
	return nil
}

func (s *leadService) List(ctx context.Context, kind models.LeadKind) ([]models.Lead, error) {
	leads, err := s.repo.List(ctx, kind)
	if err != nil {
		s.log.Error("Failed to list leads", err, map[string]interface{}{
			"kind": kind,
		})
		return nil, Classify(fmt.Sprintf("list %s leads", kind), err)
	}
	return leads, nil
}
