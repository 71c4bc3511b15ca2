// Package errors provides error wrapping utilities and the error taxonomy
// shared by the catalog client, the file stores and the upload coordinator.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the reconciliation taxonomy.
var (
	// ErrNotFound means a catalog object vanished between scan and upload.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyHasImage is not a failure: the target gained an image concurrently.
	ErrAlreadyHasImage = errors.New("already has image")

	// ErrTransient covers network failures, timeouts, 429 and 5xx responses.
	ErrTransient = errors.New("transient transport failure")

	// ErrVersionConflict means an optimistic-concurrency write lost a race.
	ErrVersionConflict = errors.New("version conflict")

	// ErrConfigurationMissing means no vendor directory could be resolved.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// Kind classifies an error into the taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyHasImage
	KindTransient
	KindVersionConflict
	KindConfigurationMissing
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyHasImage:
		return "already_has_image"
	case KindTransient:
		return "transient"
	case KindVersionConflict:
		return "version_conflict"
	case KindConfigurationMissing:
		return "configuration_missing"
	default:
		return "unknown"
	}
}

// kindOrder is the precedence KindOf applies when an error chain matches
// more than one sentinel.
var kindOrder = []Kind{
	KindNotFound,
	KindAlreadyHasImage,
	KindVersionConflict,
	KindConfigurationMissing,
	KindTransient,
}

var kindSentinels = map[Kind]error{
	KindNotFound:             ErrNotFound,
	KindAlreadyHasImage:      ErrAlreadyHasImage,
	KindTransient:            ErrTransient,
	KindVersionConflict:      ErrVersionConflict,
	KindConfigurationMissing: ErrConfigurationMissing,
}

// CatalogError is returned by remote catalog operations.
type CatalogError struct {
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *CatalogError) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Kind)
}

// Unwrap implements errors.Unwrap
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *CatalogError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// NewCatalogError creates a CatalogError.
func NewCatalogError(op string, kind Kind, statusCode int, err error) *CatalogError {
	return &CatalogError{Op: op, Kind: kind, StatusCode: statusCode, Err: err}
}

// KindOf returns the taxonomy kind of err, or KindUnknown. The outermost
// CatalogError decides; otherwise sentinels are checked in kindOrder.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *CatalogError
	if errors.As(err, &ce) && ce.Kind != KindUnknown {
		return ce.Kind
	}
	for _, kind := range kindOrder {
		if errors.Is(err, kindSentinels[kind]) {
			return kind
		}
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Is is errors.Is, re-exported so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New is errors.New.
var New = errors.New

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
