package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the different kinds of failures a tracking cycle can hit
type ErrorType string

const (
	ErrorTypeTransientRender   ErrorType = "transient_render"
	ErrorTypeQualityShortfall  ErrorType = "quality_shortfall"
	ErrorTypeCollectionFailure ErrorType = "collection_failure"
	ErrorTypeReciprocityCheck  ErrorType = "reciprocity_check"
	ErrorTypePersistence       ErrorType = "persistence"
	ErrorTypeNavigation        ErrorType = "navigation"
	ErrorTypeAuth              ErrorType = "auth"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error carries a typed failure with an optional identifier and cause
type Error struct {
	Type       ErrorType
	Message    string
	Identifier string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.Identifier != "" {
		msg = fmt.Sprintf("%s error (%s): %s", e.Type, e.Identifier, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so callers can compare
// against the sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == "" && t.Identifier == ""
}

// Sentinels for errors.Is checks
var (
	ErrTransientRender   = &Error{Type: ErrorTypeTransientRender}
	ErrQualityShortfall  = &Error{Type: ErrorTypeQualityShortfall}
	ErrCollectionFailure = &Error{Type: ErrorTypeCollectionFailure}
	ErrReciprocityCheck  = &Error{Type: ErrorTypeReciprocityCheck}
	ErrPersistence       = &Error{Type: ErrorTypePersistence}
	ErrNavigation        = &Error{Type: ErrorTypeNavigation}
	ErrAuth              = &Error{Type: ErrorTypeAuth}
)

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// TransientRender reports a wait or lookup that timed out before content rendered
func TransientRender(err error, what string) *Error {
	return &Error{Type: ErrorTypeTransientRender, Message: fmt.Sprintf("%s did not render in time", what), Err: err}
}

// QualityShortfall reports a pass that collected too few identifiers
func QualityShortfall(collected, expected int, quality float64) *Error {
	return &Error{
		Type:    ErrorTypeQualityShortfall,
		Message: fmt.Sprintf("collected %d of %d (%.2f%%)", collected, expected, quality*100),
	}
}

// CollectionFailure reports that no usable snapshot was produced this cycle
func CollectionFailure(err error, message string) *Error {
	return &Error{Type: ErrorTypeCollectionFailure, Message: message, Err: err}
}

// ReciprocityCheck reports a reciprocity lookup that could not be completed
func ReciprocityCheck(identifier string, err error) *Error {
	return &Error{Type: ErrorTypeReciprocityCheck, Identifier: identifier, Message: "could not determine reciprocity", Err: err}
}

// Persistence reports a unit of work that could not be committed
func Persistence(err error, message string) *Error {
	return &Error{Type: ErrorTypePersistence, Message: message, Err: err}
}

// TypeOf returns the ErrorType of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain contains an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsRetryable checks if an error type should be retried within a pass
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransientRender, ErrorTypeNavigation:
		return true
	case ErrorTypeQualityShortfall, ErrorTypeCollectionFailure, ErrorTypePersistence, ErrorTypeAuth, ErrorTypeConfig:
		return false
	default:
		return false
	}
}

// IsRetryableError is IsRetryable applied to an error chain
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryable(TypeOf(err))
}
