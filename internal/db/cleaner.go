package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartAuditCleaner deletes audit events older than retention, checking
// every interval.
func StartAuditCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				res, err := db.ExecContext(ctx, `
                    DELETE FROM audit_events
                     WHERE created_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to clean audit events", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned audit events", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
