// Package form holds admin property drafts and turns them into stored
// listings.
package form

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/media"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/notify"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

// Mode says whether a submit creates or updates.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// State of a form.
type State string

const (
	StatePristine   State = "pristine"
	StateDirty      State = "dirty"
	StateSubmitting State = "submitting"
)

var (
	// ErrSubmitInFlight is returned while a submit is running. The call has
	// no effect.
	ErrSubmitInFlight = errors.New("submit already in progress")

	ErrUnknownMediaKind = errors.New("unknown media kind")
	ErrFileNotFound     = errors.New("pending file not found")
)

// Persister stores a built listing.
type Persister interface {
	Create(ctx context.Context, p models.Property) (*models.Property, error)
	Replace(ctx context.Context, id string, p models.Property) (*models.Property, error)
}

// Deps are the collaborators shared by every form.
type Deps struct {
	Builder   *models.Builder
	Persister Persister
	Uploader  media.Uploader
	Sink      notify.Sink
	Log       *logger.Logger
}

// FailedUpload is a file that did not reach storage.
type FailedUpload struct {
	Kind  media.Kind `json:"kind"`
	Name  string     `json:"name"`
	Error string     `json:"error"`
}

// SubmitReport describes a finished submit.
type SubmitReport struct {
	Property *models.Property        `json:"property"`
	Created  bool                    `json:"created"`
	Uploaded map[media.Kind][]string `json:"uploaded"`
	Failed   []FailedUpload          `json:"failed"`
}

// PartialFailure reports whether some uploads failed.
func (r *SubmitReport) PartialFailure() bool {
	return len(r.Failed) > 0
}

// snapshot is the part of a form that dirty tracking compares.
type snapshot struct {
	draft   models.Property
	pending map[media.Kind][]media.File
}

// Controller owns one property draft, its pending uploads and the baseline
// it is compared against.
type Controller struct {
	mu         sync.Mutex
	deps       Deps
	log        *logger.Logger
	mode       Mode
	draft      models.Property
	pending    map[media.Kind][]media.File
	baseline   snapshot
	submitting bool
	touched    time.Time
	now        func() time.Time
}

// NewCreate starts a form for a new listing with the fallback values set.
func NewCreate(deps Deps) *Controller {
	return newController(deps, ModeCreate, deps.Builder.NewDraft())
}

// NewEdit starts a form for an existing listing.
func NewEdit(deps Deps, p models.Property) *Controller {
	return newController(deps, ModeEdit, p)
}

func newController(deps Deps, mode Mode, draft models.Property) *Controller {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	c := &Controller{
		deps:    deps,
		log:     log.WithComponent("form"),
		mode:    mode,
		draft:   draft.Clone(),
		pending: map[media.Kind][]media.File{},
		now:     time.Now,
	}
	c.baseline = c.snapshotLocked()
	c.touched = c.now()
	return c
}

// Mode returns whether the next submit creates or updates.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns Submitting while a submit runs, otherwise Dirty when the
// draft or pending files differ from the baseline.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	if c.submitting {
		return StateSubmitting
	}
	if equalSnapshots(c.snapshotLocked(), c.baseline) {
		return StatePristine
	}
	return StateDirty
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() models.Property {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

// Pending returns the files waiting to be uploaded for kind.
func (c *Controller) Pending(kind media.Kind) []media.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]media.File(nil), c.pending[kind]...)
}

// LastTouched is when the form was last created, changed or submitted.
func (c *Controller) LastTouched() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

// Update changes the draft through fn. Exchange terms are cleared as soon
// as permuta is no longer a payment method.
func (c *Controller) Update(fn func(p *models.Property)) error {
	return c.mutate(func() error {
		fn(&c.draft)
		return nil
	})
}

// ApplyPatch merges a JSON object into the draft. Identity and timestamps
// cannot be changed this way.
func (c *Controller) ApplyPatch(data []byte) error {
	return c.mutate(func() error {
		next := c.draft.Clone()
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&next); err != nil {
			return &services.ValidationError{Fields: map[string]string{"body": err.Error()}}
		}
		next.ID = c.draft.ID
		next.CreatedAt = c.draft.CreatedAt
		next.UpdatedAt = c.draft.UpdatedAt
		c.draft = next
		return nil
	})
}

// AddFiles queues files for upload on the next submit.
func (c *Controller) AddFiles(kind media.Kind, files ...media.File) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMediaKind, kind)
	}
	return c.mutate(func() error {
		c.pending[kind] = append(c.pending[kind], files...)
		return nil
	})
}

// RemovePendingFile drops the queued file at index.
func (c *Controller) RemovePendingFile(kind media.Kind, index int) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMediaKind, kind)
	}
	return c.mutate(func() error {
		files := c.pending[kind]
		if index < 0 || index >= len(files) {
			return ErrFileNotFound
		}
		c.pending[kind] = append(files[:index:index], files[index+1:]...)
		return nil
	})
}

// RemoveMedia drops an already stored URL from the draft. It reports
// whether the URL was present.
func (c *Controller) RemoveMedia(kind media.Kind, url string) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownMediaKind, kind)
	}
	removed := false
	err := c.mutate(func() error {
		list := mediaList(&c.draft, kind)
		kept := make([]string, 0, len(*list))
		for _, u := range *list {
			if u == url {
				removed = true
				continue
			}
			kept = append(kept, u)
		}
		*list = kept
		return nil
	})
	return removed, err
}

// Discard throws away every change since the baseline.
func (c *Controller) Discard() error {
	return c.mutate(func() error {
		c.draft = c.baseline.draft.Clone()
		c.pending = clonePending(c.baseline.pending)
		return nil
	})
}

func (c *Controller) mutate(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return ErrSubmitInFlight
	}
	if err := fn(); err != nil {
		return err
	}
	models.ApplyConditions(&c.draft)
	c.touched = c.now()
	return nil
}

// Submit uploads pending files, builds the listing and stores it. Files are
// uploaded independently; failed uploads are reported, never fatal. On
// success the baseline becomes the stored listing. On failure the form stays
// dirty and the error is a *services.Failure.
func (c *Controller) Submit(ctx context.Context) (*SubmitReport, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	draft := c.draft.Clone()
	// Required fields and value checks fail before any upload.
	if _, err := c.deps.Builder.Build(draft); err != nil {
		c.mu.Unlock()
		return nil, services.Classify("submit property", err)
	}
	pending := clonePending(c.pending)
	mode := c.mode
	c.submitting = true
	c.touched = c.now()
	c.mu.Unlock()

	report := &SubmitReport{Uploaded: map[media.Kind][]string{}, Failed: []FailedUpload{}}
	uploaded := map[media.Kind][]media.File{}
	for _, kind := range media.Kinds {
		files := pending[kind]
		if len(files) == 0 {
			continue
		}
		result := media.UploadAll(ctx, c.deps.Uploader, kind, files)
		for _, fe := range result.Failed {
			c.log.Warn("Media upload failed", map[string]interface{}{
				"kind":  kind,
				"file":  fe.File.Name,
				"error": fe.Err.Error(),
			})
			report.Failed = append(report.Failed, FailedUpload{Kind: kind, Name: fe.File.Name, Error: fe.Err.Error()})
		}
		for _, u := range result.Uploaded {
			uploaded[kind] = append(uploaded[kind], u.File)
		}
		report.Uploaded[kind] = result.URLs()

		list := mediaList(&draft, kind)
		*list = appendMissing(*list, result.URLs())
	}
	if report.PartialFailure() {
		c.notify(ctx, notify.Notification{
			Kind:     notify.KindUploadPartial,
			Severity: notify.SeverityWarning,
			Title:    fmt.Sprintf("%d file(s) could not be uploaded", len(report.Failed)),
			Fields: map[string]interface{}{
				"property_title": draft.Title,
				"failed":         report.Failed,
			},
		})
	}

	stored, err := c.persist(ctx, mode, draft)

	c.mu.Lock()
	c.submitting = false
	c.touched = c.now()

	// Stored files never upload twice, whatever happens next.
	for kind, files := range uploaded {
		c.pending[kind] = removeFiles(c.pending[kind], files)
		list := mediaList(&c.draft, kind)
		*list = appendMissing(*list, report.Uploaded[kind])
	}

	if err != nil {
		c.mu.Unlock()
		failure := services.Classify("submit property", err)
		c.log.Error("Property submit failed", err, map[string]interface{}{
			"mode":  mode,
			"class": failure.Class,
		})
		c.notify(ctx, notify.Notification{
			Kind:     notify.KindSubmitFailed,
			Severity: notify.SeverityError,
			Title:    "Property could not be saved",
			Message:  failure.UserMessage(),
			Fields: map[string]interface{}{
				"property_title": draft.Title,
				"class":          string(failure.Class),
			},
		})
		return report, failure
	}

	c.draft = stored.Clone()
	c.pending = map[media.Kind][]media.File{}
	c.baseline = c.snapshotLocked()
	if mode == ModeCreate {
		c.mode = ModeEdit
		report.Created = true
	}
	c.mu.Unlock()
	report.Property = stored

	c.log.Info("Property submitted", map[string]interface{}{
		"property_id":    stored.ID,
		"mode":           mode,
		"failed_uploads": len(report.Failed),
	})
	return report, nil
}

func (c *Controller) persist(ctx context.Context, mode Mode, draft models.Property) (*models.Property, error) {
	built, err := c.deps.Builder.Build(draft)
	if err != nil {
		return nil, err
	}
	if mode == ModeCreate {
		return c.deps.Persister.Create(ctx, built)
	}
	return c.deps.Persister.Replace(ctx, built.ID, built)
}

func (c *Controller) notify(ctx context.Context, n notify.Notification) {
	if c.deps.Sink == nil {
		return
	}
	n.At = c.now().UTC()
	if err := c.deps.Sink.Notify(ctx, n); err != nil {
		c.log.Error("Failed to send notification", err, map[string]interface{}{
			"kind": n.Kind,
		})
	}
}

func (c *Controller) snapshotLocked() snapshot {
	return snapshot{
		draft:   canonicalDraft(c.draft),
		pending: canonicalPending(c.pending),
	}
}

func equalSnapshots(a, b snapshot) bool {
	return reflect.DeepEqual(a, b)
}

// canonicalDraft maps equivalent drafts to the same value: empty lists and
// zero-valued optional groups become nil.
func canonicalDraft(p models.Property) models.Property {
	out := p.Clone()
	for _, list := range []*[]string{&out.Images, &out.Videos, &out.Amenities, &out.PaymentMethods} {
		if len(*list) == 0 {
			*list = nil
		}
	}
	if out.Location != nil && out.Location.IsZero() {
		out.Location = nil
	}
	if out.Exchange != nil {
		if len(out.Exchange.AcceptedTypes) == 0 {
			out.Exchange.AcceptedTypes = nil
		}
		if out.Exchange.Description == "" && out.Exchange.EstimatedValue == nil && out.Exchange.AcceptedTypes == nil {
			out.Exchange = nil
		}
	}
	return out
}

func canonicalPending(pending map[media.Kind][]media.File) map[media.Kind][]media.File {
	var out map[media.Kind][]media.File
	for kind, files := range pending {
		if len(files) == 0 {
			continue
		}
		if out == nil {
			out = map[media.Kind][]media.File{}
		}
		out[kind] = append([]media.File(nil), files...)
	}
	return out
}

func clonePending(pending map[media.Kind][]media.File) map[media.Kind][]media.File {
	out := make(map[media.Kind][]media.File, len(pending))
	for kind, files := range pending {
		out[kind] = append([]media.File(nil), files...)
	}
	return out
}

func mediaList(p *models.Property, kind media.Kind) *[]string {
	if kind == media.KindVideos {
		return &p.Videos
	}
	return &p.Images
}

func appendMissing(list, urls []string) []string {
	seen := make(map[string]bool, len(list))
	for _, u := range list {
		seen[u] = true
	}
	for _, u := range urls {
		if !seen[u] {
			list = append(list, u)
			seen[u] = true
		}
	}
	return list
}

// removeFiles drops one occurrence of each file in done from files.
func removeFiles(files, done []media.File) []media.File {
	out := make([]media.File, 0, len(files))
	remaining := append([]media.File(nil), done...)
	for _, f := range files {
		matched := -1
		for i, d := range remaining {
			if sameFile(f, d) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			remaining = append(remaining[:matched], remaining[matched+1:]...)
			continue
		}
		out = append(out, f)
	}
	return out
}

func sameFile(a, b media.File) bool {
	return a.Name == b.Name && a.ContentType == b.ContentType && bytes.Equal(a.Data, b.Data)
}
