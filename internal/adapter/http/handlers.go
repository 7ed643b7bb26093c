package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Strob0t/CodeAssist/internal/adapter/markdown"
	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/domain/task"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
)

// TaskService is the task manager as seen by the HTTP layer.
type TaskService interface {
	Submit(ctx context.Context, input string) (*task.Task, error)
	Poll(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context) ([]task.Task, error)
}

// ToolRegistry resolves registered tools.
type ToolRegistry interface {
	List() []tool.Descriptor
	ByName(name string) (tool.Descriptor, bool)
}

// Handlers holds the collaborators of every HTTP handler.
type Handlers struct {
	Tasks    TaskService
	Tools    ToolRegistry
	Markdown *markdown.Renderer
	Events   http.HandlerFunc // optional WebSocket endpoint

	// InvokeTimeout bounds a synchronous tool invocation and replaces the
	// server write timeout for that response. Zero keeps the server default.
	InvokeTimeout time.Duration
}

// StatusReceived is the status returned for a freshly submitted request.
const StatusReceived = "received"

type submitRequest struct {
	Input *string `json:"input"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// pollResponse is the polling contract: result is null while processing.
type pollResponse struct {
	Status task.Status `json:"status"`
	Result *string     `json:"result"`
}

func toPollResponse(t *task.Task) pollResponse {
	return pollResponse{Status: t.Status, Result: t.Result}
}

type invokeResponse struct {
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

// SubmitAgentRequest handles POST /agent. The input field must be present;
// an empty string is accepted.
func (h *Handlers) SubmitAgentRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[submitRequest](w, r)
	if !ok {
		return
	}
	if req.Input == nil {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	t, err := h.Tasks.Submit(r.Context(), *req.Input)
	if err != nil {
		writeDomainError(w, r, err, "submit failed")
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: t.ID, Status: StatusReceived})
}

// GetAgentTask handles GET /agent/{id}.
func (h *Handlers) GetAgentTask(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Tasks.Poll, toPollResponse, "task not found")(w, r)
}

// ListAgentTasks handles GET /agent.
func (h *Handlers) ListAgentTasks(w http.ResponseWriter, r *http.Request) {
	handleList(h.Tasks.List)(w, r)
}

// GetAgentTaskHTML handles GET /agent/{id}/html. The task result is
// rendered from markdown into a sanitized page.
func (h *Handlers) GetAgentTaskHTML(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	t, err := h.Tasks.Poll(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	if !t.Status.IsTerminal() || t.Result == nil {
		writeError(w, http.StatusConflict, "task is still processing")
		return
	}

	title := fmt.Sprintf("Task %s (%s)", t.ID, t.Status)
	page, err := h.Markdown.Page(title, *t.Result)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

// ListTools handles GET /tools.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	handleList(func(context.Context) ([]tool.Descriptor, error) {
		return h.Tools.List(), nil
	})(w, r)
}

// InvokeTool handles POST /tools/{name}/invoke and runs the tool synchronously.
func (h *Handlers) InvokeTool(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	d, found := h.Tools.ByName(name)
	if !found {
		writeDomainError(w, r, fmt.Errorf("%s: %w", name, domain.ErrToolNotFound), "tool not found")
		return
	}

	req, ok := readJSON[submitRequest](w, r)
	if !ok {
		return
	}
	if req.Input == nil {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	ctx := r.Context()
	if h.InvokeTimeout > 0 {
		// Not every ResponseWriter supports deadlines; the server default applies then.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(h.InvokeTimeout))
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.InvokeTimeout)
		defer cancel()
	}

	out, err := d.Handler.Invoke(ctx, *req.Input)
	if err != nil {
		writeDomainError(w, r, err, "tool not found")
		return
	}
	writeJSON(w, http.StatusOK, invokeResponse{Tool: d.Name, Output: out})
}

// Health handles GET /health. It reports liveness only.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
