package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/CodeAssist/internal/port/audit"
	"github.com/Strob0t/CodeAssist/internal/port/messagequeue"
)

// AuditPublisher is an audit.Sink that emits audit.recorded events.
type AuditPublisher struct {
	q messagequeue.Queue
}

var _ audit.Sink = (*AuditPublisher)(nil)

// NewAuditPublisher wraps a queue as an audit sink.
func NewAuditPublisher(q messagequeue.Queue) *AuditPublisher {
	return &AuditPublisher{q: q}
}

// Write publishes rec on messagequeue.SubjectAuditRecorded.
func (p *AuditPublisher) Write(ctx context.Context, rec audit.Record) error {
	data, err := json.Marshal(messagequeue.AuditRecordedPayload{
		ID:        rec.ID,
		Tool:      rec.Tool,
		Input:     rec.Input,
		Output:    rec.Output,
		TaskID:    rec.TaskID,
		RequestID: rec.RequestID,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	return p.q.Publish(ctx, messagequeue.SubjectAuditRecorded, data)
}
