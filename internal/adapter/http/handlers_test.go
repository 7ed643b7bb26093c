package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/Strob0t/CodeAssist/internal/adapter/http"
	"github.com/Strob0t/CodeAssist/internal/adapter/markdown"
	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/domain/pipeline"
	"github.com/Strob0t/CodeAssist/internal/domain/task"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/middleware"
	"github.com/Strob0t/CodeAssist/internal/service"
)

// mockTasks is an in-memory TaskService whose tasks stay processing until
// finish is called.
type mockTasks struct {
	mu        sync.Mutex
	tasks     map[string]*task.Task
	order     []string
	submitted []string
	err       error
}

func newMockTasks() *mockTasks {
	return &mockTasks{tasks: make(map[string]*task.Task)}
}

func (m *mockTasks) Submit(_ context.Context, input string) (*task.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("task-%d", len(m.order)+1)
	t := task.New(id, input, time.Now())
	m.tasks[id] = &t
	m.order = append(m.order, id)
	m.submitted = append(m.submitted, input)
	out := t.Clone()
	return &out, nil
}

func (m *mockTasks) Poll(_ context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	out := t.Clone()
	return &out, nil
}

func (m *mockTasks) List(context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]task.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].Clone())
	}
	return out, nil
}

func (m *mockTasks) finish(id, result string, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if failed {
		m.tasks[id].Fail(result, time.Now())
	} else {
		m.tasks[id].Complete(result, time.Now())
	}
}

// mapCache is a cache.Cache for the idempotency middleware.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func newTestRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	upper := service.NewSingleShotTool("shouter", func(_ context.Context, in string) (string, error) {
		return strings.ToUpper(in), nil
	}, nil)
	broken := service.NewPipelineTool("broken", pipeline.Runner{}, []pipeline.Stage{{
		Name:      "fail",
		Transform: func(context.Context, string) (string, error) { return "", errors.New("backend down") },
	}}, nil, nil)
	for _, d := range []tool.Descriptor{
		{Name: "shouter", Description: "upper-cases input", Tags: []string{"text"}, Handler: upper},
		{Name: "broken", Description: "always fails", Handler: broken},
	} {
		if err := reg.Register(d); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func newTestRouter(t *testing.T, tasks *mockTasks, mw ...func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	h := &cfhttp.Handlers{
		Tasks:    tasks,
		Tools:    newTestRegistry(t),
		Markdown: markdown.NewRenderer(),
	}
	r := chi.NewRouter()
	cfhttp.MountRoutes(r, h, mw...)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestSubmitAgentRequest(t *testing.T) {
	tasks := newMockTasks()
	r := newTestRouter(t, tasks)

	w := do(t, r, http.MethodPost, "/agent", `{"input":"review this"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	got := decode[map[string]string](t, w)
	if got["task_id"] != "task-1" || got["status"] != "received" {
		t.Errorf("unexpected body %v", got)
	}
	if len(tasks.submitted) != 1 || tasks.submitted[0] != "review this" {
		t.Errorf("submitted = %v", tasks.submitted)
	}
}

func TestSubmitAgentRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing input", `{}`, http.StatusBadRequest},
		{"null input", `{"input":null}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
		{"empty input is valid", `{"input":""}`, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestRouter(t, newMockTasks()), http.MethodPost, "/agent", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSubmitAgentRequestShuttingDown(t *testing.T) {
	tasks := newMockTasks()
	tasks.err = service.ErrShuttingDown

	w := do(t, newTestRouter(t, tasks), http.MethodPost, "/agent", `{"input":"x"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestGetAgentTaskLifecycle(t *testing.T) {
	tasks := newMockTasks()
	r := newTestRouter(t, tasks)
	do(t, r, http.MethodPost, "/agent", `{"input":"x"}`)

	w := do(t, r, http.MethodGet, "/agent/task-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"status":"processing","result":null}` {
		t.Errorf("processing body = %s", body)
	}

	tasks.finish("task-1", "all good", false)
	w = do(t, r, http.MethodGet, "/agent/task-1", "")
	got := decode[map[string]any](t, w)
	if got["status"] != "completed" || got["result"] != "all good" {
		t.Errorf("completed body = %v", got)
	}
}

func TestGetAgentTaskUnknown(t *testing.T) {
	w := do(t, newTestRouter(t, newMockTasks()), http.MethodGet, "/agent/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[map[string]string](t, w); got["error"] == "" {
		t.Error("expected error body")
	}
}

func TestListAgentTasks(t *testing.T) {
	tasks := newMockTasks()
	r := newTestRouter(t, tasks)

	w := do(t, r, http.MethodGet, "/agent", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list body = %s", w.Body.String())
	}

	do(t, r, http.MethodPost, "/agent", `{"input":"a"}`)
	do(t, r, http.MethodPost, "/agent", `{"input":"b"}`)
	list := decode[[]task.Task](t, do(t, r, http.MethodGet, "/agent", ""))
	if len(list) != 2 {
		t.Fatalf("listed %d tasks", len(list))
	}
}

func TestGetAgentTaskHTML(t *testing.T) {
	tasks := newMockTasks()
	r := newTestRouter(t, tasks)
	do(t, r, http.MethodPost, "/agent", `{"input":"x"}`)

	if w := do(t, r, http.MethodGet, "/agent/task-1/html", ""); w.Code != http.StatusConflict {
		t.Fatalf("processing status = %d", w.Code)
	}

	tasks.finish("task-1", "## Review\n\n<script>alert(1)</script>\n\n**ok**", false)
	w := do(t, r, http.MethodGet, "/agent/task-1/html", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<strong>ok</strong>") {
		t.Errorf("markdown not rendered:\n%s", body)
	}
	if strings.Contains(body, "<script>") {
		t.Errorf("script survived sanitizing:\n%s", body)
	}

	if w := do(t, r, http.MethodGet, "/agent/missing/html", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown status = %d", w.Code)
	}
}

func TestListTools(t *testing.T) {
	w := do(t, newTestRouter(t, newMockTasks()), http.MethodGet, "/tools", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[[]map[string]any](t, w)
	if len(got) != 2 || got[0]["name"] != "shouter" || got[1]["name"] != "broken" {
		t.Errorf("tools = %v", got)
	}
	if _, leaked := got[0]["Handler"]; leaked {
		t.Error("handler must not be serialized")
	}
}

func TestInvokeTool(t *testing.T) {
	r := newTestRouter(t, newMockTasks())

	w := do(t, r, http.MethodPost, "/tools/shouter/invoke", `{"input":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	got := decode[map[string]string](t, w)
	if got["tool"] != "shouter" || got["output"] != "HI" {
		t.Errorf("body = %v", got)
	}

	if w := do(t, r, http.MethodPost, "/tools/nope/invoke", `{"input":"hi"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown tool status = %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/tools/shouter/invoke", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing input status = %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/tools/broken/invoke", `{"input":"x"}`); w.Code != http.StatusBadGateway {
		t.Errorf("failing tool status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(t, newMockTasks()), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[map[string]string](t, w); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestSubmitIsIdempotentWithKey(t *testing.T) {
	tasks := newMockTasks()
	idem := middleware.Idempotency(&mapCache{data: make(map[string][]byte)}, time.Hour)
	r := newTestRouter(t, tasks, idem)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(`{"input":"x"}`))
		req.Header.Set("Idempotency-Key", "abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send()
	second := send()
	if first.Code != http.StatusAccepted || second.Code != http.StatusAccepted {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("replayed body differs: %s vs %s", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay header")
	}
	if len(tasks.submitted) != 1 {
		t.Errorf("submitted %d tasks, want 1", len(tasks.submitted))
	}
}

func slowRouter(t *testing.T, invokeTimeout time.Duration) http.Handler {
	t.Helper()
	reg := tool.NewRegistry()
	slow := service.NewSingleShotTool("slow", func(ctx context.Context, in string) (string, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "done: " + in, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, nil)
	if err := reg.Register(tool.Descriptor{Name: "slow", Description: "takes a while", Handler: slow}); err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	cfhttp.MountRoutes(r, &cfhttp.Handlers{Tasks: newMockTasks(), Tools: reg, InvokeTimeout: invokeTimeout})
	return r
}

func TestInvokeToolOutlivesServerWriteTimeout(t *testing.T) {
	srv := httptest.NewUnstartedServer(slowRouter(t, 5*time.Second))
	srv.Config.WriteTimeout = 50 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/tools/slow/invoke", "application/json", strings.NewReader(`{"input":"x"}`))
	if err != nil {
		t.Fatalf("response cut off: %v", err)
	}
	defer resp.Body.Close()

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || got["output"] != "done: x" {
		t.Errorf("status %d body %v", resp.StatusCode, got)
	}
}

func TestInvokeToolTimesOut(t *testing.T) {
	w := do(t, slowRouter(t, 20*time.Millisecond), http.MethodPost, "/tools/slow/invoke", `{"input":"x"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}
