// Package notify delivers operator notifications for new leads and partial
// upload failures.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/logger"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification event kinds.
const (
	KindLeadCreated   = "lead.created"
	KindUploadPartial = "upload.partial"
	KindSubmitFailed  = "submit.failed"
)

// Notification is a single message for operators.
type Notification struct {
	Kind     string                 `json:"kind"`
	Severity Severity               `json:"severity"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message,omitempty"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
	At       time.Time              `json:"at"`
}

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a sink that logs through log.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.WithComponent("notify")}
}

func (s *LogSink) Notify(ctx context.Context, n Notification) error {
	fields := map[string]interface{}{
		"kind":  n.Kind,
		"title": n.Title,
	}
	if n.Message != "" {
		fields["message"] = n.Message
	}
	for k, v := range n.Fields {
		fields[k] = v
	}

	switch n.Severity {
	case SeverityWarning:
		s.log.Warn("notification", fields)
	case SeverityError:
		s.log.Error("notification", nil, fields)
	default:
		s.log.Info("notification", fields)
	}
	return nil
}

// Multi fans a notification out to every sink. All sinks are tried; their
// errors are joined.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	Err   error
}

func (r *Recorder) Notify(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return r.Err
}

// Notifications returns a copy of what was received.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}
