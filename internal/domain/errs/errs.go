package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a business-rule failure. The string value is the stable
// error code returned to calling layers.
type Kind string

const (
	KindInvalidTransition   Kind = "INVALID_TRANSITION"
	KindNotAuthorized       Kind = "NOT_AUTHORIZED"
	KindStale               Kind = "STALE_STATE"
	KindExpired             Kind = "EXPIRED"
	KindOutOfServiceArea    Kind = "OUT_OF_SERVICE_AREA"
	KindIncompleteProperty  Kind = "INCOMPLETE_PROPERTY"
	KindPaymentFailed       Kind = "PAYMENT_FAILED"
	KindInvalidOTP          Kind = "INVALID_OTP"
	KindGeofenceViolation   Kind = "GEOFENCE_VIOLATION"
	KindPropertyNotBookable Kind = "PROPERTY_NOT_BOOKABLE"
	KindNotFound            Kind = "NOT_FOUND"
	KindValidation          Kind = "VALIDATION"
	KindLimitExceeded       Kind = "LIMIT_EXCEEDED"
)

// Error is a typed, recoverable failure. Entities are left unchanged when one is returned.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, errs.ErrStale) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrNotAuthorized       = &Error{Kind: KindNotAuthorized}
	ErrStale               = &Error{Kind: KindStale}
	ErrExpired             = &Error{Kind: KindExpired}
	ErrOutOfServiceArea    = &Error{Kind: KindOutOfServiceArea}
	ErrIncompleteProperty  = &Error{Kind: KindIncompleteProperty}
	ErrPaymentFailed       = &Error{Kind: KindPaymentFailed}
	ErrInvalidOTP          = &Error{Kind: KindInvalidOTP}
	ErrGeofenceViolation   = &Error{Kind: KindGeofenceViolation}
	ErrPropertyNotBookable = &Error{Kind: KindPropertyNotBookable}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrLimitExceeded       = &Error{Kind: KindLimitExceeded}
)

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(entity string, from, to interface{}) error {
	return New(KindInvalidTransition, "%s cannot move from %v to %v", entity, from, to)
}

func NotAuthorized(format string, args ...interface{}) error {
	return New(KindNotAuthorized, format, args...)
}

func Stale(entity string, id interface{}) error {
	return New(KindStale, "%s %v was modified concurrently; refetch and retry", entity, id)
}

func Expired(format string, args ...interface{}) error {
	return New(KindExpired, format, args...)
}

func NotFound(entity string, id interface{}) error {
	return New(KindNotFound, "%s %v not found", entity, id)
}

func Validation(format string, args ...interface{}) error {
	return New(KindValidation, format, args...)
}

// KindOf returns the kind of a typed error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a kind to the status code used by the REST surface.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStale:
		return http.StatusConflict
	case KindInvalidTransition, KindPropertyNotBookable, KindIncompleteProperty, KindLimitExceeded:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	case KindPaymentFailed:
		return http.StatusPaymentRequired
	case KindValidation, KindInvalidOTP, KindGeofenceViolation, KindOutOfServiceArea:
		return http.StatusUnprocessableEntity
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
