package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUpload            = errors.New("upload failed")
	ErrAnalysis          = errors.New("analysis failed")
	ErrSearch            = errors.New("search failed")
	ErrHealthCheck       = errors.New("health check failed")
	ErrCases             = errors.New("case listing failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrBusy              = errors.New("pipeline already running")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrTemporary         = errors.New("temporary failure")
)

// Generic display messages used when the backend gives no usable detail.
const (
	UploadFailedMessage      = "Upload failed"
	AnalysisFailedMessage    = "Analysis failed"
	SearchFailedMessage      = "Search failed"
	HealthCheckFailedMessage = "Health check failed"
	CasesFailedMessage       = "Failed to load cases"
)

// RemoteError is a failed backend call. Error returns the display string
// only; the kind and the underlying cause stay reachable through errors.Is.
type RemoteError struct {
	Kind       error
	StatusCode int
	Detail     string
	Err        error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return "remote error"
	}
	if e.Detail != "" {
		return e.Detail
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "remote error"
}

func (e *RemoteError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// DisplayMessage is the string shown to the user for a failure.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Error()
	}
	return err.Error()
}
