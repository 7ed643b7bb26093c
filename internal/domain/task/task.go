// Package task defines the Task domain entity.
package task

import "time"

// Status represents the current state of a task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one submitted request tracked from submission to a terminal state.
// Result stays nil while the task is processing.
type Task struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Tool      string    `json:"tool,omitempty"`
	Status    Status    `json:"status"`
	Result    *string   `json:"result"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a processing task.
func New(id, input string, now time.Time) Task {
	return Task{
		ID:        id,
		Input:     input,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete moves the task to completed with the given output.
func (t *Task) Complete(output string, now time.Time) {
	t.finish(StatusCompleted, output, now)
}

// Fail moves the task to failed with a human-readable summary.
func (t *Task) Fail(summary string, now time.Time) {
	t.finish(StatusFailed, summary, now)
}

func (t *Task) finish(s Status, result string, now time.Time) {
	if t.Status.IsTerminal() {
		return
	}
	t.Status = s
	t.Result = &result
	t.UpdatedAt = now
}

// Clone returns a deep copy safe to hand to readers.
func (t Task) Clone() Task {
	if t.Result != nil {
		r := *t.Result
		t.Result = &r
	}
	return t
}

// StatusEvent is broadcast whenever a task changes state.
type StatusEvent struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`
	Tool   string `json:"tool,omitempty"`
}
