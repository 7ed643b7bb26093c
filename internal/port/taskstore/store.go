// Package taskstore defines the port for task state storage.
package taskstore

import (
	"context"
	"time"

	"github.com/Strob0t/CodeAssist/internal/domain/task"
)

// Store holds tasks for the lifetime of the process. Get and List return
// copies; callers never share memory with the store.
type Store interface {
	Create(ctx context.Context, t task.Task) error
	Get(ctx context.Context, id string) (task.Task, error)
	Update(ctx context.Context, t task.Task) error
	List(ctx context.Context) ([]task.Task, error)
	// DeleteTerminalBefore removes completed and failed tasks last updated
	// before cutoff and returns how many were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}
