package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/CodeAssist/internal/domain/task"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/port/audit"
	"github.com/Strob0t/CodeAssist/internal/port/messagequeue"
)

var errBackend = errors.New("backend unavailable")

// fixedCompleter always answers with the same response.
type fixedCompleter struct {
	response string
	err      error

	mu      sync.Mutex
	prompts []string
	calls   atomic.Int32
}

func (c *fixedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	return c.response, c.err
}

func (c *fixedCompleter) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

// recordingSink captures audit records.
type recordingSink struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (s *recordingSink) Write(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) all() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Record(nil), s.records...)
}

// echoTool returns a descriptor whose handler prefixes the input with name.
func echoTool(name string) tool.Descriptor {
	return tool.Descriptor{
		Name:        name,
		Description: "the " + name + " tool",
		Handler: tool.HandlerFunc(func(_ context.Context, input string) (string, error) {
			return name + ":" + input, nil
		}),
	}
}

func registryWith(names ...string) *tool.Registry {
	reg := tool.NewRegistry()
	for _, n := range names {
		if err := reg.Register(echoTool(n)); err != nil {
			panic(err)
		}
	}
	return reg
}

// recordingHub captures broadcast events.
type recordingHub struct {
	mu     sync.Mutex
	events []task.StatusEvent
}

func (h *recordingHub) BroadcastEvent(_ context.Context, _ string, payload any) {
	ev, ok := payload.(task.StatusEvent)
	if !ok {
		return
	}
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

func (h *recordingHub) statuses(taskID string) []task.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []task.Status
	for _, ev := range h.events {
		if ev.TaskID == taskID {
			out = append(out, ev.Status)
		}
	}
	return out
}

// recordingQueue captures published messages.
type recordingQueue struct {
	mu       sync.Mutex
	subjects []string
}

func (q *recordingQueue) Publish(_ context.Context, subject string, data []byte) error {
	if err := messagequeue.Validate(subject, data); err != nil {
		return err
	}
	q.mu.Lock()
	q.subjects = append(q.subjects, subject)
	q.mu.Unlock()
	return nil
}

func (q *recordingQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (q *recordingQueue) Drain() error      { return nil }
func (q *recordingQueue) Close() error      { return nil }
func (q *recordingQueue) IsConnected() bool { return true }

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subjects)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
