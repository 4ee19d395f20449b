package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/docstore"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
)

// ValidationError is returned when caller data is rejected before any
// backend call.
type ValidationError = models.ValidationError

// Class groups backend failures by what the caller can do about them.
type Class string

const (
	ClassValidation Class = "validation"
	ClassAuth       Class = "auth"
	ClassNetwork    Class = "network"
	ClassQuota      Class = "quota"
	ClassUnknown    Class = "unknown"
)

// Failure is a classified error from a backend operation.
type Failure struct {
	Class Class
	Op    string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// UserMessage is what an operator sees. Unknown failures carry the raw
// backend message for diagnosis.
func (f *Failure) UserMessage() string {
	switch f.Class {
	case ClassValidation:
		return f.Err.Error()
	case ClassAuth:
		return "Your session is not allowed to do this. Sign in again and retry."
	case ClassNetwork:
		return "The service cannot be reached right now. Check the connection and retry."
	case ClassQuota:
		return "The storage quota has been exceeded. Try again later."
	default:
		return "Unexpected error: " + f.Err.Error()
	}
}

// Classify maps err to a Failure for op. It returns nil for a nil error.
func Classify(op string, err error) *Failure {
	if err == nil {
		return nil
	}
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}
	return &Failure{Class: classOf(err), Op: op, Err: err}
}

func classOf(err error) Class {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return ClassValidation
	case errors.Is(err, docstore.ErrPermissionDenied):
		return ClassAuth
	case errors.Is(err, docstore.ErrQuotaExceeded):
		return ClassQuota
	case errors.Is(err, docstore.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ClassNetwork
	default:
		return ClassUnknown
	}
}
