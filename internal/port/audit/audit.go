// Package audit defines the port for recording tool invocations.
package audit

import (
	"context"
	"time"
)

// Record is one audited invocation.
type Record struct {
	ID        string    `json:"id"`
	Tool      string    `json:"tool"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	TaskID    string    `json:"task_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink persists audit records. Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// Discard drops every record.
type Discard struct{}

// Write does nothing.
func (Discard) Write(context.Context, Record) error { return nil }
