package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent represents a record stored in audit_logs. The gate and the
// domain services append events; nothing reads them synchronously.
type AuditEvent struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditSink writes records into audit_logs.
type AuditSink struct {
	pool *pgxpool.Pool
}

// NewAuditSink returns a new AuditSink.
func NewAuditSink(pool *pgxpool.Pool) *AuditSink {
	return &AuditSink{pool: pool}
}

// Append persists the event. Callers treat failures as non-fatal: an
// unavailable audit store must never block the request that produced
// the event.
func (s *AuditSink) Append(ctx context.Context, event AuditEvent) error {
	if s == nil {
		return errors.New("audit sink not initialised")
	}
	if event.Action == "" || event.Entity == "" {
		return errors.New("audit event requires action and entity")
	}
	metaJSON, err := json.Marshal(event.Meta)
	if err != nil {
		return err
	}
	var at any
	if !event.At.IsZero() {
		at = event.At
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		event.ActorID, event.Action, event.Entity, event.EntityID, metaJSON, at)
	return err
}
