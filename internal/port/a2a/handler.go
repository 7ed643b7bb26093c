package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/domain/task"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/service"
)

// TaskService is the part of the task manager the A2A endpoints drive.
type TaskService interface {
	Submit(ctx context.Context, input string) (*task.Task, error)
	SubmitTool(ctx context.Context, input string, d tool.Descriptor) (*task.Task, error)
	Poll(ctx context.Context, id string) (*task.Task, error)
}

// ToolLister exposes the registered tools.
type ToolLister interface {
	List() []tool.Descriptor
	ByName(name string) (tool.Descriptor, bool)
}

// Handler serves the A2A protocol endpoints.
type Handler struct {
	baseURL string
	tasks   TaskService
	tools   ToolLister

	mu  sync.RWMutex
	ids map[string]string // client task id -> internal task id
}

// NewHandler creates an A2A handler.
func NewHandler(baseURL string, tasks TaskService, tools ToolLister) *Handler {
	return &Handler{
		baseURL: baseURL,
		tasks:   tasks,
		tools:   tools,
		ids:     make(map[string]string),
	}
}

// MountRoutes registers A2A routes on the given chi router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/.well-known/agent.json", h.handleAgentCard)
	r.Post("/a2a/tasks", h.handleCreateTask)
	r.Get("/a2a/tasks/{id}", h.handleGetTask)
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BuildAgentCard(h.baseURL, h.tools.List()))
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text, ok := req.text()
	if !ok {
		writeError(w, http.StatusBadRequest, "input.text is required")
		return
	}

	// A named skill runs that tool directly; otherwise the planner picks one.
	var (
		t   *task.Task
		err error
	)
	if req.Skill != "" {
		d, found := h.tools.ByName(req.Skill)
		if !found {
			writeError(w, http.StatusBadRequest, "unknown skill")
			return
		}
		t, err = h.tasks.SubmitTool(r.Context(), text, d)
	} else {
		t, err = h.tasks.Submit(r.Context(), text)
	}
	if err != nil {
		if errors.Is(err, service.ErrShuttingDown) {
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		slog.Error("a2a submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	id := t.ID
	if req.ID != "" {
		h.mu.Lock()
		h.ids[req.ID] = t.ID
		h.mu.Unlock()
		id = req.ID
	}

	slog.Info("a2a task created", "id", id, "task_id", t.ID, "skill", req.Skill)
	writeJSON(w, http.StatusCreated, toResponse(id, t))
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	internal := id
	h.mu.RLock()
	if mapped, ok := h.ids[id]; ok {
		internal = mapped
	}
	h.mu.RUnlock()

	t, err := h.tasks.Poll(r.Context(), internal)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(id, t))
}

func toResponse(id string, t *task.Task) TaskResponse {
	resp := TaskResponse{ID: id}
	switch t.Status {
	case task.StatusProcessing:
		resp.Status = "running"
	case task.StatusCompleted:
		resp.Status = "completed"
		resp.Output = map[string]any{"text": deref(t.Result), "tool": t.Tool}
	case task.StatusFailed:
		resp.Status = "failed"
		resp.Error = deref(t.Result)
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
