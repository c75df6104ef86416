// Package apperr holds the error taxonomy shared by planners and providers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInput marks a broken input contract (missing transcript, bad duration).
	ErrInput = errors.New("invalid input")
	// ErrValidation marks an artifact that failed schema validation.
	ErrValidation = errors.New("validation failed")
	// ErrTimeout marks an external call cancelled by its deadline.
	ErrTimeout = errors.New("timed out")
	// ErrModelUnavailable marks a provider rejecting the requested model.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrProviderUnavailable marks a provider that cannot be used at all.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Inputf builds an error wrapping ErrInput.
func Inputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// Violation is a single failed rule.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError aggregates every violation found for one artifact.
type ValidationError struct {
	Artifact   string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Path == "" {
			parts = append(parts, v.Message)
			continue
		}
		parts = append(parts, v.Path+": "+v.Message)
	}
	return fmt.Sprintf("%s validation failed: %s", e.Artifact, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ProviderKind classifies a provider failure.
type ProviderKind int

const (
	KindTransport ProviderKind = iota
	KindModelUnavailable
	KindAuth
	KindBadResponse
)

func (k ProviderKind) String() string {
	switch k {
	case KindModelUnavailable:
		return "model-unavailable"
	case KindAuth:
		return "auth"
	case KindBadResponse:
		return "bad-response"
	default:
		return "transport"
	}
}

// ProviderError is returned by provider adapters. Detail carries the response
// body or stderr, already truncated and redacted.
type ProviderError struct {
	Provider string
	Model    string
	Kind     ProviderKind
	Status   int
	Detail   string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Provider)
	if e.Model != "" {
		fmt.Fprintf(&b, " (model=%s)", e.Model)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " status %d", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == ErrModelUnavailable && e.Kind == KindModelUnavailable
}

// IsModelUnavailable reports whether err is a model-unavailable failure.
func IsModelUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}

// TimeoutError is returned when a provider call exceeded its deadline.
type TimeoutError struct {
	Provider string
	Model    string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s (model=%s)", e.Provider, e.After, e.Model)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
