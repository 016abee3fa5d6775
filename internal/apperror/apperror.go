// Package apperror defines the typed errors the gateway returns.
//
// Every constructor returns an *AppError that wraps one of the sentinel errors
// below, so callers can branch with errors.Is() no matter how many layers of
// fmt.Errorf("...: %w", err) sit on top:
//
//	if errors.Is(err, apperror.ErrUnapprovedOrganization) { ... }
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthorized means there is no valid session for the request.
	ErrUnauthorized = errors.New("unauthorized")

	// Account errors.
	ErrAuthCreation           = errors.New("account creation rejected")
	ErrAuthSignIn             = errors.New("sign-in rejected")
	ErrUnapprovedOrganization = errors.New("organization not approved")

	// Backend errors.
	ErrDocumentWrite = errors.New("document write failed")
	ErrDocumentRead  = errors.New("document read failed")
	ErrSubscription  = errors.New("subscription failed")
)

type AppError struct {
	Err     error  // sentinel (ErrNotFound, ErrAuthSignIn, ...)
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying backend error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause, so errors.Is
// matches either one.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for a missing, expired or revoked session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// AuthCreationFailed is returned when a credential cannot be created:
// duplicate email, weak password, malformed address, or a storage failure.
func AuthCreationFailed(field, message string, cause error) *AppError {
	return &AppError{
		Err:     ErrAuthCreation,
		Message: message,
		Field:   field,
		Cause:   cause,
	}
}

// AuthSignInFailed is returned for bad credentials. The message is the same
// for an unknown email and a wrong password.
func AuthSignInFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrAuthSignIn,
		Message: "invalid email or password",
		Cause:   cause,
	}
}

// UnapprovedOrganization is returned when an organization signs in before an
// admin has approved it. The session has already been revoked. Field stays
// empty: nothing in the request was wrong.
func UnapprovedOrganization() *AppError {
	return &AppError{
		Err:     ErrUnapprovedOrganization,
		Message: "Organization not yet approved by admin.",
	}
}

func DocumentWriteFailed(resource, id string, cause error) *AppError {
	return &AppError{
		Err:     ErrDocumentWrite,
		Message: fmt.Sprintf("writing %s %s failed", resource, id),
		Cause:   cause,
	}
}

func DocumentReadFailed(resource string, cause error) *AppError {
	return &AppError{
		Err:     ErrDocumentRead,
		Message: fmt.Sprintf("reading %s failed", resource),
		Cause:   cause,
	}
}

func SubscriptionFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrSubscription,
		Message: "feed subscription failed",
		Cause:   cause,
	}
}
