package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CodeAssist/internal/domain/tool"
)

// registerTools exposes every registered tool plus the task tools.
func (s *Server) registerTools() {
	var tools []mcpserver.ServerTool
	if s.deps.Tools != nil {
		for _, d := range s.deps.Tools.List() {
			tools = append(tools, s.registryTool(d))
		}
	}
	if s.deps.Tasks != nil {
		tools = append(tools, s.submitRequestTool(), s.getTaskTool())
	}
	if len(tools) > 0 {
		s.mcpServer.AddTools(tools...)
	}
}

func (s *Server) registryTool(d tool.Descriptor) mcpserver.ServerTool {
	t := mcplib.NewTool(d.Name,
		mcplib.WithDescription(d.Description),
		mcplib.WithString("input",
			mcplib.Required(),
			mcplib.Description("Source code or request text passed to the tool"),
		),
	)
	handler := d.Handler
	name := d.Name
	return mcpserver.ServerTool{
		Tool: t,
		Handler: func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
			input, ok := req.GetArguments()["input"].(string)
			if !ok {
				return mcplib.NewToolResultError("input is required"), nil
			}
			out, err := handler.Invoke(ctx, input)
			if err != nil {
				slog.Warn("mcp tool invocation failed", "tool", name, "error", err)
				return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("tool %s failed", name), err), nil
			}
			return mcplib.NewToolResultText(out), nil
		},
	}
}

func (s *Server) submitRequestTool() mcpserver.ServerTool {
	t := mcplib.NewTool("submit_request",
		mcplib.WithDescription("Submit a free-form request; the planner picks a tool and the result is polled with get_task"),
		mcplib.WithString("input",
			mcplib.Required(),
			mcplib.Description("The request text"),
		),
	)
	return mcpserver.ServerTool{Tool: t, Handler: s.handleSubmitRequest}
}

func (s *Server) getTaskTool() mcpserver.ServerTool {
	t := mcplib.NewTool("get_task",
		mcplib.WithDescription("Get the status and result of a submitted request"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID returned by submit_request"),
		),
	)
	return mcpserver.ServerTool{Tool: t, Handler: s.handleGetTask}
}

func (s *Server) handleSubmitRequest(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	input, ok := req.GetArguments()["input"].(string)
	if !ok {
		return mcplib.NewToolResultError("input is required"), nil
	}
	t, err := s.deps.Tasks.Submit(ctx, input)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to submit request", err), nil
	}
	return toolResultJSON(map[string]string{"task_id": t.ID, "status": "received"})
}

func (s *Server) handleGetTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	id, ok := req.GetArguments()["task_id"].(string)
	if !ok || id == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}
	t, err := s.deps.Tasks.Poll(ctx, id)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get task %s", id), err), nil
	}
	return toolResultJSON(map[string]any{"status": t.Status, "result": t.Result})
}

func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
