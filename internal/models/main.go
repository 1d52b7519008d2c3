// Package models defines the core data structures for tokens,
// change requests, and API responses.
package models

import "time"

// TokenRecord is the snapshot of an account taken when a reset token is
// issued. The directory remains the source of truth for the account itself;
// the record only carries what the reset flow needs.
type TokenRecord struct {
	// DN is the distinguished name of the account in the directory.
	DN string `json:"dn"`
	// Username is the human-readable display name shown on the reset form.
	Username string `json:"username"`
}

// Severity classifies an API error for display purposes.
type Severity string

const (
	// SeverityDanger marks a hard failure.
	SeverityDanger Severity = "danger"
	// SeverityWarning marks a non-fatal advisory.
	SeverityWarning Severity = "warning"
)

// APIError is a single structured error returned to the web caller.
type APIError struct {
	// Type is the severity of the error ("danger" or "warning").
	Type Severity `json:"type"`
	// Msg is a generic, non-leaking message suitable for end users.
	Msg string `json:"msg"`
}

// ChangeResult is the outcome of a credential-change attempt.
type ChangeResult struct {
	// CanRetry reports whether resubmitting the same request can possibly
	// succeed. It is not an HTTP status: validation failures and transient
	// directory errors are retryable, a consumed token is not.
	CanRetry bool
	// Errors is empty on success.
	Errors []APIError
}

// AuthPath selects how a change request proves its authority.
// It is a sealed union: exactly TokenAuth or SelfAssertedAuth.
type AuthPath interface {
	isAuthPath()
}

// TokenAuth authorizes the change through a previously issued reset token.
type TokenAuth struct {
	// Token is the opaque token string from the reset link.
	Token string
}

func (TokenAuth) isAuthPath() {}

// SelfAssertedAuth authorizes the change by proving knowledge of the
// account's current password.
type SelfAssertedAuth struct {
	// AccountName is the account's common name within the user subtree.
	AccountName string
	// OldPassword is the current password, verified by the directory bind.
	OldPassword string
}

func (SelfAssertedAuth) isAuthPath() {}

// ChangeRequest is a single credential-change attempt. It is never persisted.
type ChangeRequest struct {
	// NewPassword is the requested password.
	NewPassword string
	// ConfirmPassword must match NewPassword.
	ConfirmPassword string
	// Auth is the authority path, decided once at the request boundary.
	Auth AuthPath
}

// AuditKind identifies the kind of an audit event.
type AuditKind string

const (
	// AuditTokenIssued records creation of a reset token.
	AuditTokenIssued AuditKind = "token_issued"
	// AuditTokenRevoked records explicit revocation of a reset token.
	AuditTokenRevoked AuditKind = "token_revoked"
	// AuditPasswordChanged records a successful credential change.
	AuditPasswordChanged AuditKind = "password_changed"
)

// AuditEvent is one row of the audit trail.
type AuditEvent struct {
	// ID is a unique identifier for the event.
	ID string
	// Kind is the event kind.
	Kind AuditKind
	// DN is the distinguished name the event concerns.
	DN string
	// Detail carries extra context, e.g. the authentication mode used.
	Detail string
	// CreatedAt is the event timestamp.
	CreatedAt time.Time
}
