// Package memory implements the task store port in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/domain/task"
)

// TaskStore keeps tasks in a map guarded by a RWMutex.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]task.Task
}

// NewTaskStore returns an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]task.Task)}
}

// Create adds a new task. Creating an existing id is a validation error.
func (s *TaskStore) Create(_ context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already exists: %w", t.ID, domain.ErrValidation)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a copy of the task.
func (s *TaskStore) Get(_ context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

// Update replaces a stored task. Terminal tasks are never overwritten.
func (s *TaskStore) Update(_ context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[t.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", t.ID, domain.ErrNotFound)
	}
	if cur.Status.IsTerminal() {
		return fmt.Errorf("task %s is %s: %w", t.ID, cur.Status, domain.ErrValidation)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// List returns copies of all tasks, newest first.
func (s *TaskStore) List(_ context.Context) ([]task.Task, error) {
	s.mu.RLock()
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteTerminalBefore evicts finished tasks last updated before cutoff.
func (s *TaskStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tasks {
		if t.Status.IsTerminal() && t.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}
