// Package repository provides persistence implementations for the token
// store and the audit trail.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/passreset/passreset/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrTokenExists is returned by Create when a record for the token
	// is already persisted.
	ErrTokenExists = errors.New("token already exists")
	// ErrTokenNotFound is returned by Remove when no record exists for
	// the token.
	ErrTokenNotFound = errors.New("token not found")
)

// keepSentinel is the placeholder file that keeps an otherwise-empty token
// directory under version control. It never resolves to a record.
const keepSentinel = ".keep"

// FileTokenRepository stores one JSON file per token under a directory.
// The filename is the token itself, so tokens coming from request input
// are validated before any filesystem interaction.
type FileTokenRepository struct {
	dir string
	log *zap.Logger
}

// NewFileTokenRepository creates a FileTokenRepository rooted at dir.
func NewFileTokenRepository(dir string, log *zap.Logger) *FileTokenRepository {
	return &FileTokenRepository{dir: dir, log: log}
}

// validToken reports whether token is safe to use as a filename. Tokens are
// untrusted on the redemption path: anything that could escape the token
// directory or name the sentinel is rejected.
func validToken(token string) bool {
	if token == "" || token == keepSentinel {
		return false
	}
	if strings.ContainsAny(token, "/\\") || strings.Contains(token, "..") {
		return false
	}
	return filepath.Base(token) == token
}

func (r *FileTokenRepository) path(token string) string {
	return filepath.Join(r.dir, token)
}

// Create persists rec keyed by token. It fails with ErrTokenExists if a
// record is already present. Creation is exclusive at the filesystem level,
// so two concurrent creates for the same token cannot produce two different
// records.
func (r *FileTokenRepository) Create(ctx context.Context, token string, rec models.TokenRecord) error {
	if !validToken(token) {
		return fmt.Errorf("create token: invalid token %q", token)
	}
	f, err := os.OpenFile(r.path(token), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return ErrTokenExists
		}
		return fmt.Errorf("create token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		f.Close()
		_ = os.Remove(r.path(token))
		return fmt.Errorf("write token file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(r.path(token))
		return fmt.Errorf("close token file: %w", err)
	}
	return nil
}

// Read returns the record stored for token, or (nil, nil) if the token does
// not resolve: unknown token, path-traversal attempt, or the version-control
// sentinel, regardless of that file's content.
func (r *FileTokenRepository) Read(ctx context.Context, token string) (*models.TokenRecord, error) {
	if !validToken(token) {
		return nil, nil
	}
	f, err := os.Open(r.path(token))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	var rec models.TokenRecord
	if err := json.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &rec, nil
}

// Delete removes the record for token if present. It is idempotent: absence
// is not an error, and I/O failures are logged but never propagated, so a
// stale token file can never block a success response to the end user.
func (r *FileTokenRepository) Delete(ctx context.Context, token string) {
	if !validToken(token) {
		return
	}
	if err := os.Remove(r.path(token)); err != nil && !os.IsNotExist(err) {
		r.log.Warn("cannot delete token", zap.String("token", token), zap.Error(err))
	}
}

// Remove removes the record for token, failing with ErrTokenNotFound if no
// record exists. Used by the issuance tool, which must distinguish "no token
// to revoke" from an I/O failure.
func (r *FileTokenRepository) Remove(ctx context.Context, token string) error {
	if !validToken(token) {
		return ErrTokenNotFound
	}
	if err := os.Remove(r.path(token)); err != nil {
		if os.IsNotExist(err) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
