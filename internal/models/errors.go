package models

import (
	"errors"
)

// Error kinds. Every error returned by the booking core matches exactly one of
// these through errors.Is.
var (
	ErrNotFound          = errors.New("models: no matching record found")
	ErrConflict          = errors.New("models: conflict")
	ErrInvalidState      = errors.New("models: invalid state transition")
	ErrValidation        = errors.New("models: validation failed")
	ErrWindowExpired     = errors.New("models: window expired")
	ErrInsufficientFunds = errors.New("models: insufficient funds")
	ErrExternalFailure   = errors.New("models: external collaborator failure")
	ErrForbidden         = errors.New("models: forbidden")
)

// Error is a coded error that belongs to one of the kinds above.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is reports whether target is the error's kind, or a coded error with the
// same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == e.Code
	}
	return target == e.Kind
}

// Unwrap exposes the kind so callers can errors.Is against it.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrEngagementNotFound   = newError(ErrNotFound, "EngagementNotFound", "engagement not found")
	ErrApplicationNotFound  = newError(ErrNotFound, "ApplicationNotFound", "no application from this performer")
	ErrPerformerNotFound    = newError(ErrNotFound, "PerformerNotFound", "performer not found")
	ErrMemberNotFound       = newError(ErrNotFound, "MemberNotFound", "band member not found")
	ErrFeeNotFound          = newError(ErrNotFound, "FeeNotFound", "fee entry not found")
	ErrConversationNotFound = newError(ErrNotFound, "ConversationNotFound", "conversation not found")
	ErrInviteNotFound       = newError(ErrNotFound, "InviteNotFound", "band invite not found")

	ErrDuplicateApplication = newError(ErrConflict, "DuplicateApplication", "performer already applied")
	ErrAlreadyBooked        = newError(ErrConflict, "AlreadyBooked", "engagement already booked")
	ErrVersionConflict      = newError(ErrConflict, "VersionConflict", "record was modified concurrently")
	ErrAlreadyMember        = newError(ErrConflict, "AlreadyMember", "performer is already a band member")
	ErrDuplicateReview      = newError(ErrConflict, "DuplicateReview", "review already submitted")

	ErrEngagementClosed    = newError(ErrInvalidState, "EngagementClosed", "engagement is closed to applications")
	ErrInvalidTransition   = newError(ErrInvalidState, "InvalidTransition", "transition not allowed from current status")
	ErrInviteUsed          = newError(ErrInvalidState, "InviteUsed", "invite already used or cancelled")
	ErrFeeNotPending       = newError(ErrInvalidState, "FeeNotPending", "fee is not pending")
	ErrNotBooked           = newError(ErrInvalidState, "NotBooked", "performer does not hold the booking")
	ErrLastAdmin           = newError(ErrInvalidState, "LastAdminError", "cannot revoke the only band admin")
	ErrNoPayoutDestination = newError(ErrInvalidState, "NoPayoutDestination", "no payout destination linked")

	ErrInvalidSplit    = newError(ErrValidation, "InvalidSplit", "splits must sum to exactly 100")
	ErrNoAdminAssigned = newError(ErrValidation, "NoAdminAssigned", "band must keep exactly one admin")
	ErrMissingField    = newError(ErrValidation, "MissingField", "required field missing")
	ErrInvalidAmount   = newError(ErrValidation, "InvalidAmount", "amount must be positive")
	ErrInvalidPassword = newError(ErrValidation, "InvalidPassword", "join password does not match")

	ErrDisputeWindowClosed = newError(ErrWindowExpired, "DisputeWindowClosed", "the dispute period has closed")
	ErrInviteExpired       = newError(ErrWindowExpired, "InviteExpired", "invite expired")

	ErrInsufficientEarnings = newError(ErrInsufficientFunds, "InsufficientFunds", "amount exceeds withdrawable earnings")

	ErrNotPermitted = newError(ErrForbidden, "Forbidden", "caller may not act for this account")
)

// Missing returns a validation error naming the absent field.
func Missing(field string) error {
	return &Error{Kind: ErrValidation, Code: ErrMissingField.Code, Message: field + " is required"}
}

// External wraps a collaborator failure. Such errors are retryable.
func External(op string, err error) error {
	return &externalError{op: op, err: err}
}

type externalError struct {
	op  string
	err error
}

func (e *externalError) Error() string { return e.op + ": " + e.err.Error() }

func (e *externalError) Is(target error) bool { return target == ErrExternalFailure }

func (e *externalError) Unwrap() error { return e.err }

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExternalFailure) || errors.Is(err, ErrVersionConflict)
}
