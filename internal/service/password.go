// Package service provides the credential-change business logic,
// delegating persistence to a TokenRepository and directory operations
// to a Directory gateway.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/passreset/passreset/internal/directory"
	"github.com/passreset/passreset/internal/models"
	"go.uber.org/zap"
)

// TokenRepository defines the token-store operations required by the
// credential-change flow.
type TokenRepository interface {
	// Read returns the record for token, or (nil, nil) if the token does
	// not resolve.
	Read(ctx context.Context, token string) (*models.TokenRecord, error)
	// Delete removes the record for token. It is idempotent and never
	// fails; I/O problems are logged inside the store.
	Delete(ctx context.Context, token string)
}

// Directory opens authenticated connections to the directory service.
type Directory interface {
	Bind(bindDN, password string) (directory.Connection, error)
}

// AuditRecorder records audit events. Recording failures are logged and
// never affect the change flow.
type AuditRecorder interface {
	Record(ctx context.Context, kind models.AuditKind, dn, detail string) error
}

// Policy holds the directory identities and password rules the service
// applies. It is fixed at construction.
type Policy struct {
	// UserOU is the subtree holding user entries; self-asserted requests
	// bind as "cn=<account>,<UserOU>".
	UserOU string
	// AdminDN and AdminPassword form the administrative bind identity
	// used on the token path.
	AdminDN       string
	AdminPassword string
	// MinPasswordLength is the minimum accepted new-password length.
	MinPasswordLength int
}

// Authentication modes, recorded in the audit trail.
const (
	authModeToken = "token"
	authModeSelf  = "self_asserted"
)

// Messages returned to web callers. Deliberately generic: directory detail
// goes to the log, never to the response.
const (
	msgMismatch      = "Password and confirmation do not match"
	msgInvalidToken  = "Provided token is invalid"
	msgServerDown    = "Could not access the directory server"
	msgAdminAuth     = "Could not authenticate to the directory server"
	msgWrongPassword = "The current password is incorrect"
	msgUserNotFound  = "The specified user doesn't exist in the database"
	msgChangeFailed  = "Unable to change the password"
	msgInternal      = "Internal error, please try again later"
)

// PasswordService orchestrates credential changes: it validates the
// request, selects the authentication path, talks to the directory, and
// retires the token after a confirmed success.
type PasswordService struct {
	tokens TokenRepository
	dir    Directory
	audit  AuditRecorder
	policy Policy
	log    *zap.Logger
}

// NewPasswordService constructs a PasswordService.
func NewPasswordService(tokens TokenRepository, dir Directory, audit AuditRecorder, policy Policy, log *zap.Logger) *PasswordService {
	return &PasswordService{tokens: tokens, dir: dir, audit: audit, policy: policy, log: log}
}

// ChangePassword performs one credential change end to end. The returned
// CanRetry flag tells the caller whether resubmitting the same request can
// possibly succeed; it is computed per failure point, not per HTTP status.
func (s *PasswordService) ChangePassword(ctx context.Context, req models.ChangeRequest) models.ChangeResult {
	// Validation failures are caller-fixable and never consume a token
	// or touch the directory.
	if req.NewPassword != req.ConfirmPassword {
		return retryable(msgMismatch)
	}
	if len(req.NewPassword) < s.policy.MinPasswordLength {
		return retryable(fmt.Sprintf("Password must be at least %d characters long", s.policy.MinPasswordLength))
	}

	var (
		bindDN, bindPassword string
		targetDN             string
		token                string
		mode                 string
	)
	switch auth := req.Auth.(type) {
	case models.TokenAuth:
		rec, err := s.tokens.Read(ctx, auth.Token)
		if err != nil {
			s.log.Error("cannot read token store", zap.Error(err))
			return retryable(msgInternal)
		}
		if rec == nil {
			// Unknown, consumed, or malformed token: a new grant is
			// required, resubmission cannot help.
			return nonRetryable(msgInvalidToken)
		}
		bindDN, bindPassword = s.policy.AdminDN, s.policy.AdminPassword
		targetDN = rec.DN
		token = auth.Token
		mode = authModeToken
	case models.SelfAssertedAuth:
		// The directory's own authentication is the proof of ownership.
		bindDN = "cn=" + auth.AccountName + "," + s.policy.UserOU
		bindPassword = auth.OldPassword
		targetDN = bindDN
		mode = authModeSelf
	default:
		return nonRetryable(msgInvalidToken)
	}

	conn, err := s.dir.Bind(bindDN, bindPassword)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrUnreachable):
			s.log.Error("unable to connect directory server", zap.Error(err))
			return retryable(msgServerDown)
		case errors.Is(err, directory.ErrInvalidCredentials):
			s.log.Error("directory bind rejected", zap.String("bind_dn", bindDN), zap.Error(err))
			if mode == authModeSelf {
				return retryable(msgWrongPassword)
			}
			return retryable(msgAdminAuth)
		default:
			s.log.Error("directory bind failed", zap.Error(err))
			return retryable(msgServerDown)
		}
	}
	defer func() { _ = conn.Close() }()

	// The bound identity and the target may differ in token mode, so the
	// target entry must be confirmed before any mutation.
	entry, err := conn.Resolve(targetDN)
	if err != nil {
		if errors.Is(err, directory.ErrEntryNotFound) {
			s.log.Error("changing password: user not found", zap.String("dn", targetDN))
			return nonRetryable(msgUserNotFound)
		}
		s.log.Error("cannot resolve user entry", zap.String("dn", targetDN), zap.Error(err))
		return retryable(msgChangeFailed)
	}

	if err := conn.SetPassword(entry.DN, req.NewPassword); err != nil {
		s.log.Error("error changing the password", zap.String("dn", entry.DN), zap.Error(err))
		return retryable(msgChangeFailed)
	}

	// Retire the token only after a confirmed change, so a failed attempt
	// never burns a valid token. Self-asserted mode has no token.
	if mode == authModeToken {
		s.tokens.Delete(ctx, token)
	}

	if err := s.audit.Record(ctx, models.AuditPasswordChanged, entry.DN, mode); err != nil {
		s.log.Warn("cannot record audit event", zap.Error(err))
	}

	return models.ChangeResult{CanRetry: false, Errors: []models.APIError{}}
}

func retryable(msg string) models.ChangeResult {
	return models.ChangeResult{
		CanRetry: true,
		Errors:   []models.APIError{{Type: models.SeverityDanger, Msg: msg}},
	}
}

func nonRetryable(msg string) models.ChangeResult {
	return models.ChangeResult{
		CanRetry: false,
		Errors:   []models.APIError{{Type: models.SeverityDanger, Msg: msg}},
	}
}
