package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	Actor      Actor
	Action     string
	Collection string
	Message    string
	At         time.Time
}

// AuditLogger writes records into audit_logs. Calls are best-effort: business
// operations ignore the returned error.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Collection == "" {
		return errors.New("audit log requires action/collection")
	}
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, actor_name, action, collection, message, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		log.Actor.ID, log.Actor.Name, log.Action, log.Collection, log.Message, at)
	return err
}
