package shared

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingSink struct{ calls int }

func (s *failingSink) Record(context.Context, AuditLog) error {
	s.calls++
	return errors.New("sink offline")
}

func TestLogAuditSinkWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogAuditSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Record(context.Background(), AuditLog{OrgID: 1, ActorID: 7, ActorName: "controller", Action: "journal.post", Entity: "journal_entry", EntityID: "42"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"action":"journal.post"`)
	require.Contains(t, buf.String(), `"entity_id":"42"`)

	require.Error(t, sink.Record(context.Background(), AuditLog{Action: "journal.post"}))
}

func TestRecordBestEffortSwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := &failingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	RecordBestEffort(ctx, sink, logger, AuditLog{Action: "period.close", Entity: "fiscal_period", EntityID: "3"})
	require.Equal(t, 1, sink.calls)
	require.Contains(t, buf.String(), "audit record failed")

	RecordBestEffort(ctx, nil, logger, AuditLog{})
}

func TestActorContextAndLabel(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	require.False(t, ok)

	ctx := ContextWithActor(context.Background(), Actor{ID: 5})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	require.True(t, actor.Valid())
	require.Equal(t, "user:5", actor.Label())
	require.Equal(t, "ops", Actor{ID: 5, Name: "ops"}.Label())
	require.False(t, Actor{}.Valid())
}

func TestFinanceLockKey(t *testing.T) {
	require.Equal(t, "finance:org:2:period:9:lock", FinanceLockKey(2, 9))
}
