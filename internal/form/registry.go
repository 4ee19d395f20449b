package form

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
)

// Registry keeps the drafts the admin back office is editing, keyed by an
// opaque id. Drafts idle for longer than the TTL are swept.
type Registry struct {
	mu     sync.Mutex
	deps   Deps
	ttl    time.Duration
	drafts map[string]*Controller
	cron   *cron.Cron
	log    *logger.Logger
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps, ttl time.Duration, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		deps:   deps,
		ttl:    ttl,
		drafts: make(map[string]*Controller),
		log:    log.WithComponent("drafts"),
		now:    time.Now,
	}
}

// Create opens a draft for a new listing.
func (r *Registry) Create() (string, *Controller) {
	return r.add(NewCreate(r.deps))
}

// Edit opens a draft for an existing listing.
func (r *Registry) Edit(p models.Property) (string, *Controller) {
	return r.add(NewEdit(r.deps, p))
}

func (r *Registry) add(c *Controller) (string, *Controller) {
	c.now = r.now
	c.touched = r.now()

	id := uuid.New().String()
	r.mu.Lock()
	r.drafts[id] = c
	r.mu.Unlock()

	r.log.Debug("Draft opened", map[string]interface{}{
		"draft_id": id,
		"mode":     c.mode,
	})
	return id, c
}

// Get returns the draft with id.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.drafts[id]
	return c, ok
}

// Remove closes the draft with id. It reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.drafts[id]
	delete(r.drafts, id)
	return ok
}

// Len returns the number of open drafts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}

// Sweep closes drafts untouched for longer than the TTL. Drafts that are
// submitting are kept. It returns how many were closed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0
	for id, c := range r.drafts {
		if c.State() == StateSubmitting || c.LastTouched().After(cutoff) {
			continue
		}
		delete(r.drafts, id)
		swept++
	}

	if swept > 0 {
		r.log.Info("Swept idle drafts", map[string]interface{}{
			"swept":     swept,
			"remaining": len(r.drafts),
		})
	}
	return swept
}

// Start runs Sweep on a cron schedule such as "@every 10m".
func (r *Registry) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Sweep() }); err != nil {
		return fmt.Errorf("invalid draft sweep schedule: %w", err)
	}

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	c.Start()
	r.log.Info("Draft sweeper started", map[string]interface{}{
		"schedule": schedule,
		"ttl":      r.ttl.String(),
	})
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
