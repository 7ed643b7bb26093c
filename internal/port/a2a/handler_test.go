package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/domain/task"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/service"
)

// fakeTasks completes every task immediately. Planned tasks answer
// "done: <input>"; tool tasks answer with the tool's own output.
type fakeTasks struct {
	mu      sync.Mutex
	seq     int
	closing bool
	tasks   map[string]task.Task
}

func (f *fakeTasks) Submit(_ context.Context, input string) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		return nil, service.ErrShuttingDown
	}
	f.seq++
	t := task.New(fmt.Sprintf("internal-%d", f.seq), input, time.Now())
	if input == "fail" {
		t.Fail("boom", time.Now())
	} else {
		t.Complete("done: "+input, time.Now())
	}
	f.tasks[t.ID] = t
	return &t, nil
}

func (f *fakeTasks) SubmitTool(ctx context.Context, input string, d tool.Descriptor) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing {
		return nil, service.ErrShuttingDown
	}
	f.seq++
	t := task.New(fmt.Sprintf("internal-%d", f.seq), input, time.Now())
	t.Tool = d.Name
	out, err := d.Handler.Invoke(ctx, input)
	if err != nil {
		t.Fail(err.Error(), time.Now())
	} else {
		t.Complete(out, time.Now())
	}
	f.tasks[t.ID] = t
	return &t, nil
}

func (f *fakeTasks) Poll(_ context.Context, id string) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	c := t.Clone()
	return &c, nil
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	return newRouterWith(t, &fakeTasks{tasks: make(map[string]task.Task)})
}

func newRouterWith(t *testing.T, tasks *fakeTasks) *chi.Mux {
	t.Helper()
	reg := tool.NewRegistry()
	for _, name := range []string{"code_reviewer", "unit_test_generator"} {
		err := reg.Register(tool.Descriptor{
			Name:        name,
			Description: name + " tool",
			Handler: tool.HandlerFunc(func(_ context.Context, in string) (string, error) {
				return name + ": " + in, nil
			}),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	h := NewHandler("http://localhost:8000", tasks, reg)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestAgentCard(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var card AgentCard
	if err := json.NewDecoder(w.Body).Decode(&card); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.Name != "CodeAssist" {
		t.Fatalf("expected name CodeAssist, got %s", card.Name)
	}
	if len(card.Skills) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(card.Skills))
	}
	if card.Skills[0].ID != "code_reviewer" {
		t.Fatalf("expected skills in registry order, got %s first", card.Skills[0].ID)
	}
}

func TestCreateAndGetTask(t *testing.T) {
	r := newTestRouter(t)

	body := `{"id":"client-1","input":{"text":"review this"}}`
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp TaskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "client-1" {
		t.Fatalf("expected client id echoed, got %s", resp.ID)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/a2a/tasks/client-1", http.NoBody)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}
	var got TaskResponse
	if err := json.NewDecoder(w2.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "completed" || got.Output["text"] != "done: review this" {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestCreateTaskWithoutClientID(t *testing.T) {
	r := newTestRouter(t)
	body := `{"input":{"prompt":"fail"}}`
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp TaskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "internal-1" {
		t.Fatalf("expected internal id, got %s", resp.ID)
	}
	if resp.Status != "failed" || resp.Error != "boom" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/a2a/tasks/nonexistent", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateTaskBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing text", `{"id":"x","input":{}}`},
		{"unknown skill", `{"skill":"nope","input":{"text":"hi"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t)
			req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestCreateTaskWithSkillRunsThatTool(t *testing.T) {
	r := newTestRouter(t)

	body := `{"id":"client-2","skill":"unit_test_generator","input":{"text":"func Add(a, b int) int"}}`
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp TaskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Output["tool"] != "unit_test_generator" {
		t.Fatalf("expected unit_test_generator to run, got %+v", resp.Output)
	}
	if resp.Output["text"] != "unit_test_generator: func Add(a, b int) int" {
		t.Fatalf("unexpected output: %+v", resp.Output)
	}
}

func TestCreateTaskWhileShuttingDown(t *testing.T) {
	for _, body := range []string{
		`{"input":{"text":"hi"}}`,
		`{"skill":"code_reviewer","input":{"text":"hi"}}`,
	} {
		r := newRouterWith(t, &fakeTasks{closing: true, tasks: make(map[string]task.Task)})
		req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", body, w.Code)
		}
	}
}
