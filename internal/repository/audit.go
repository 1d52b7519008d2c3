// Package repository provides persistence implementations for the audit
// trail using a PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/passreset/passreset/internal/models"
)

// PostgresAuditRepository records audit events in a PostgreSQL database.
type PostgresAuditRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuditRepository creates a new PostgresAuditRepository with the
// given database connection. db must be a valid *sql.DB connected to a
// PostgreSQL instance.
func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{DB: db}
}

// Record inserts one audit event. The event ID and timestamp are assigned
// here so callers only supply what happened.
func (r *PostgresAuditRepository) Record(ctx context.Context, kind models.AuditKind, dn, detail string) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO audit_events (id, kind, dn, detail, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), string(kind), dn, detail, time.Now().UTC(),
	)
	return err
}

// NopAuditRepository discards all events. Used when no database is
// configured: the audit trail is optional and must never affect the
// credential-change flow.
type NopAuditRepository struct{}

// Record implements the recorder interface and does nothing.
func (NopAuditRepository) Record(ctx context.Context, kind models.AuditKind, dn, detail string) error {
	return nil
}
