package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	OrgID     int64
	ActorID   int64
	ActorName string
	Action    string
	Entity    string
	EntityID  string
	Meta      map[string]any
	At        time.Time
}

// Validate checks the mandatory fields.
func (l AuditLog) Validate() error {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	return nil
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.Validate(); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (org_id, actor_id, actor_name, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`, log.OrgID, log.ActorID, log.ActorName, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// LogAuditSink writes audit records to a structured logger. It backs the
// in-memory deployment and tests.
type LogAuditSink struct {
	logger *slog.Logger
}

// NewLogAuditSink wraps logger.
func NewLogAuditSink(logger *slog.Logger) *LogAuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAuditSink{logger: logger}
}

// Record logs the entry at info level.
func (s *LogAuditSink) Record(ctx context.Context, log AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "audit",
		slog.Int64("org_id", log.OrgID),
		slog.Int64("actor_id", log.ActorID),
		slog.String("actor", log.ActorName),
		slog.String("action", log.Action),
		slog.String("entity", log.Entity),
		slog.String("entity_id", log.EntityID),
		slog.Any("meta", log.Meta),
	)
	return nil
}

// RecordBestEffort hands log to sink after a commit. Failures never reach the
// caller; they are reported to logger at warn level.
func RecordBestEffort(ctx context.Context, sink AuditPort, logger *slog.Logger, log AuditLog) {
	if sink == nil {
		return
	}
	if err := sink.Record(context.WithoutCancel(ctx), log); err != nil && logger != nil {
		logger.Warn("audit record failed",
			slog.String("action", log.Action),
			slog.String("entity_id", log.EntityID),
			slog.Any("error", err),
		)
	}
}
