// Package apperr defines the error taxonomy of the scheduling core.
//
// Every error that must reach a caller carries a Kind and a stable
// machine-readable Code. Callers recover it with errors.As:
//
//	var appErr *apperr.Error
//	if errors.As(err, &appErr) && appErr.Code == apperr.CodeSlotUnavailable {
//	    // re-offer slots
//	}
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindPolicy     Kind = "policy_violation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindExternal   Kind = "external_service"
)

// Stable error codes
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeCapacityExceeded    = "CAPACITY_EXCEEDED"
	CodeInsufficientJurors  = "INSUFFICIENT_JURORS"
	CodeCaseUndeletable     = "CASE_UNDELETABLE"
	CodeReschedulePending   = "RESCHEDULE_PENDING"
	CodeTrialNotOpen        = "TRIAL_NOT_OPEN"
	CodeForbidden           = "FORBIDDEN"
	CodeSlotUnavailable     = "SLOT_UNAVAILABLE"
	CodeApplicationExists   = "APPLICATION_EXISTS"
	CodeParticipantActive   = "PARTICIPANT_ACTIVE"
	CodeCaseNotFound        = "CASE_NOT_FOUND"
	CodeApplicationNotFound = "APPLICATION_NOT_FOUND"
	CodeMeetingNotFound     = "MEETING_NOT_FOUND"
	CodeRequestNotFound     = "REQUEST_NOT_FOUND"
	CodeExternalService     = "EXTERNAL_SERVICE_ERROR"
)

// Error is a classified, request-scoped failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// ConflictingCaseID is set for slot conflicts.
	ConflictingCaseID int64
	// SlotsRemaining is set for capacity refusals.
	SlotsRemaining *int
	Err            error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func Policy(code, format string, args ...any) *Error {
	return &Error{Kind: KindPolicy, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return Policy(CodeForbidden, format, args...)
}

func NotFound(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// SlotUnavailable reports a lost slot race together with the case now holding it.
func SlotUnavailable(conflictingCaseID int64) *Error {
	return &Error{
		Kind:              KindConflict,
		Code:              CodeSlotUnavailable,
		Message:           "selected slot is no longer available",
		ConflictingCaseID: conflictingCaseID,
	}
}

// CapacityExceeded reports a refused approval with the number of slots left.
func CapacityExceeded(remaining int, format string, args ...any) *Error {
	return &Error{
		Kind:           KindPolicy,
		Code:           CodeCapacityExceeded,
		Message:        fmt.Sprintf(format, args...),
		SlotsRemaining: &remaining,
	}
}

func External(op string, err error) *Error {
	return &Error{Kind: KindExternal, Code: CodeExternalService, Message: op, Err: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind checks whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// HasCode checks whether err carries the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
