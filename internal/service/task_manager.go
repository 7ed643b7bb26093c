package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/CodeAssist/internal/adapter/otel"
	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/domain/agent"
	"github.com/Strob0t/CodeAssist/internal/domain/task"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/logger"
	"github.com/Strob0t/CodeAssist/internal/port/broadcast"
	"github.com/Strob0t/CodeAssist/internal/port/messagequeue"
	"github.com/Strob0t/CodeAssist/internal/port/taskstore"
	"github.com/Strob0t/CodeAssist/internal/resilience"
)

// ErrShuttingDown is returned by Submit and SubmitTool once Shutdown has begun.
var ErrShuttingDown = errors.New("task manager is shutting down")

// TaskManager runs submitted requests in the background and serves polling.
// Each task runs in its own goroutine; only that goroutine writes the task
// after creation.
type TaskManager struct {
	runner  Runner
	store   taskstore.Store
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	metrics *cfotel.Metrics
	pool    *resilience.Pool
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewTaskManager creates a TaskManager. hub may be nil.
func NewTaskManager(runner Runner, store taskstore.Store, hub broadcast.Broadcaster) *TaskManager {
	if hub == nil {
		hub = broadcast.Nop{}
	}
	return &TaskManager{
		runner: runner,
		store:  store,
		hub:    hub,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SetQueue publishes task status changes on the message queue.
func (m *TaskManager) SetQueue(q messagequeue.Queue) {
	m.queue = q
}

// SetConcurrency bounds how many tasks run at once. Queued tasks stay
// processing until a slot frees up.
func (m *TaskManager) SetConcurrency(pool *resilience.Pool) {
	m.pool = pool
}

// SetMetrics enables task counters and duration histograms.
func (m *TaskManager) SetMetrics(metrics *cfotel.Metrics) {
	m.metrics = metrics
}

// runFunc produces the final state of one task.
type runFunc func(ctx context.Context, input string) (agent.State, error)

// Submit creates a processing task and starts it in the background. It
// returns without waiting for the task. The task's context is detached from
// ctx so it outlives the submitting request.
func (m *TaskManager) Submit(ctx context.Context, input string) (*task.Task, error) {
	return m.submit(ctx, input, m.runner.Run)
}

// SubmitTool is Submit with the planner skipped: the task invokes d with
// input. Audit records come from d's handler as for a planned task.
func (m *TaskManager) SubmitTool(ctx context.Context, input string, d tool.Descriptor) (*task.Task, error) {
	if d.Handler == nil {
		return nil, fmt.Errorf("%s: %w", d.Name, domain.ErrToolNotFound)
	}
	return m.submit(ctx, input, func(ctx context.Context, input string) (agent.State, error) {
		st := agent.NewState(input)
		st.SelectedTool = d.Name
		st.Phase = agent.PhasePlanned
		slog.InfoContext(ctx, "tool requested directly", "tool", d.Name)

		out, err := d.Handler.Invoke(ctx, input)
		if err != nil {
			return st, err
		}
		st.Output = out
		st.Phase = agent.PhaseDone
		return st, nil
	})
}

func (m *TaskManager) submit(ctx context.Context, input string, run runFunc) (*task.Task, error) {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	m.wg.Add(1)
	m.mu.Unlock()

	t := task.New(m.newID(), input, m.now().UTC())
	if err := m.store.Create(ctx, t); err != nil {
		m.wg.Done()
		return nil, fmt.Errorf("create task: %w", err)
	}

	if m.metrics != nil {
		m.metrics.TasksSubmitted.Add(ctx, 1)
	}
	slog.InfoContext(ctx, "task submitted", "task_id", t.ID)
	m.notify(ctx, task.StatusEvent{TaskID: t.ID, Status: t.Status})

	taskCtx := logger.WithTaskID(context.WithoutCancel(ctx), t.ID)
	go m.execute(taskCtx, t, run)

	out := t.Clone()
	return &out, nil
}

// Poll returns a copy of the task. Unknown ids yield domain.ErrNotFound.
func (m *TaskManager) Poll(ctx context.Context, id string) (*task.Task, error) {
	t, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all known tasks, newest first.
func (m *TaskManager) List(ctx context.Context) ([]task.Task, error) {
	return m.store.List(ctx)
}

func (m *TaskManager) execute(ctx context.Context, t task.Task, run runFunc) {
	defer m.wg.Done()

	start := m.now()
	ctx, span := cfotel.StartTaskSpan(ctx, t.ID)

	st, err := m.runSafely(ctx, t.Input, run)
	t.Tool = st.SelectedTool
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrTaskExecution, err)
		slog.ErrorContext(ctx, "task failed", "tool", t.Tool, "error", err)
		t.Fail(err.Error(), m.now().UTC())
	} else {
		slog.InfoContext(ctx, "task completed", "tool", t.Tool, "duration", m.now().Sub(start))
		t.Complete(st.Output, m.now().UTC())
	}
	cfotel.EndSpan(span, err)

	if uerr := m.store.Update(ctx, t); uerr != nil {
		slog.ErrorContext(ctx, "task update failed", "error", uerr)
	}
	m.record(ctx, t, start)
	m.notify(ctx, task.StatusEvent{TaskID: t.ID, Status: t.Status, Tool: t.Tool})
}

// runSafely waits for a concurrency slot and turns a runner panic into an
// error.
func (m *TaskManager) runSafely(ctx context.Context, input string, run runFunc) (st agent.State, err error) {
	err = m.pool.Run(ctx, func() (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "task panicked", "panic", r)
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		st, runErr = run(ctx, input)
		return runErr
	})
	return st, err
}

func (m *TaskManager) record(ctx context.Context, t task.Task, start time.Time) {
	if m.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool.name", t.Tool),
		attribute.String("status", string(t.Status)),
	)
	if t.Status == task.StatusCompleted {
		m.metrics.TasksCompleted.Add(ctx, 1, attrs)
	} else {
		m.metrics.TasksFailed.Add(ctx, 1, attrs)
	}
	m.metrics.TaskDuration.Record(ctx, m.now().Sub(start).Seconds(), attrs)
}

// notify broadcasts a status change and, when a queue is set, publishes it.
func (m *TaskManager) notify(ctx context.Context, ev task.StatusEvent) {
	m.hub.BroadcastEvent(ctx, broadcast.EventTaskStatus, ev)

	if m.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.TaskStatusPayload{
		TaskID: ev.TaskID,
		Status: string(ev.Status),
		Tool:   ev.Tool,
	})
	if err != nil {
		return
	}
	if err := m.queue.Publish(ctx, messagequeue.SubjectTaskStatus, data); err != nil {
		slog.WarnContext(ctx, "task status publish failed", "task_id", ev.TaskID, "error", err)
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones until ctx ends.
func (m *TaskManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks: %w", ctx.Err())
	}
}

// Sweep removes terminal tasks last updated more than retention ago.
func (m *TaskManager) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	n, err := m.store.DeleteTerminalBefore(ctx, m.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("sweep tasks: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "swept terminal tasks", "count", n)
	}
	return n, nil
}

// StartRetentionSweep runs Sweep every interval until the returned stop
// function is called. A non-positive retention disables the sweep.
func (m *TaskManager) StartRetentionSweep(retention, interval time.Duration) (stop func()) {
	if retention <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Sweep(ctx, retention); err != nil {
					slog.Error("task sweep failed", "error", err)
				}
			}
		}
	}()
	return cancel
}
