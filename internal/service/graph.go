package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/CodeAssist/internal/domain/agent"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/port/audit"
	"github.com/Strob0t/CodeAssist/internal/port/completion"
)

// Runner executes one request end to end. The task manager drives it.
type Runner interface {
	Run(ctx context.Context, input string) (agent.State, error)
}

// ToolLookup resolves tool names. *tool.Registry implements it.
type ToolLookup interface {
	List() []tool.Descriptor
	ByName(name string) (tool.Descriptor, bool)
}

// FallbackOutput is the executor output when no tool was selected.
func FallbackOutput(input string) string {
	return "No valid tool found for input. User said:\n\n" + input
}

// PlannerPrompt lists the tools in registry order and asks for one name.
func PlannerPrompt(tools []tool.Descriptor, input string) string {
	var b strings.Builder
	b.WriteString("You are a planner. Decide which tool to use based on user input. Available tools:\n")
	for _, d := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	fmt.Fprintf(&b, "\nRespond ONLY with tool name, or %q if no tool fits.\n\nUser input:\n%s", tool.None, input)
	return b.String()
}

// MatchTool maps a planner response to a registered tool name. Surrounding
// whitespace is trimmed; the remainder must equal a registered name exactly
// (case-sensitive). Anything else, including "none", yields tool.None.
func MatchTool(response string, tools ToolLookup) string {
	name := strings.TrimSpace(response)
	if name == "" || name == tool.None {
		return tool.None
	}
	if _, ok := tools.ByName(name); ok {
		return name
	}
	return tool.None
}

// AgentGraph is the two-node planner → executor state machine.
type AgentGraph struct {
	tools   ToolLookup
	planner completion.Completer
	sink    audit.Sink
	now     func() time.Time
}

var _ Runner = (*AgentGraph)(nil)

// NewAgentGraph creates a graph over the given tools. sink may be nil.
func NewAgentGraph(tools ToolLookup, planner completion.Completer, sink audit.Sink) *AgentGraph {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &AgentGraph{tools: tools, planner: planner, sink: sink, now: time.Now}
}

// Run plans and then executes. The planner always hands over to the executor.
func (g *AgentGraph) Run(ctx context.Context, input string) (agent.State, error) {
	st := agent.NewState(input)

	st, err := g.plan(ctx, st)
	if err != nil {
		return st, err
	}
	return g.execute(ctx, st)
}

func (g *AgentGraph) plan(ctx context.Context, st agent.State) (agent.State, error) {
	resp, err := g.planner.Complete(ctx, PlannerPrompt(g.tools.List(), st.Input))
	if err != nil {
		return st, fmt.Errorf("planner: %w", err)
	}

	st.SelectedTool = MatchTool(resp, g.tools)
	st.Phase = agent.PhasePlanned
	if st.SelectedTool == tool.None && strings.TrimSpace(resp) != tool.None {
		slog.InfoContext(ctx, "planner response matched no tool", "response", truncate(resp, 80))
	}
	slog.InfoContext(ctx, "planner selected tool", "tool", st.SelectedTool)
	return st, nil
}

func (g *AgentGraph) execute(ctx context.Context, st agent.State) (agent.State, error) {
	if st.SelectedTool != tool.None {
		d, ok := g.tools.ByName(st.SelectedTool)
		if ok {
			out, err := d.Handler.Invoke(ctx, st.Input)
			if err != nil {
				return st, err
			}
			st.Output = out
			st.Phase = agent.PhaseDone
			return st, nil
		}
		st.SelectedTool = tool.None
	}

	st.Output = FallbackOutput(st.Input)
	st.Phase = agent.PhaseDone
	writeAudit(ctx, g.sink, tool.AgentResponse, st.Input, st.Output, g.now())
	return st, nil
}

// DirectRunner skips planning and answers with a single completion call.
type DirectRunner struct {
	completer completion.Completer
	sink      audit.Sink
	now       func() time.Time
}

var _ Runner = (*DirectRunner)(nil)

// NewDirectRunner creates a DirectRunner. sink may be nil.
func NewDirectRunner(c completion.Completer, sink audit.Sink) *DirectRunner {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &DirectRunner{completer: c, sink: sink, now: time.Now}
}

// Run sends input to the completion capability and audits the answer.
func (r *DirectRunner) Run(ctx context.Context, input string) (agent.State, error) {
	st := agent.NewState(input)
	st.SelectedTool = tool.None
	st.Phase = agent.PhasePlanned

	out, err := r.completer.Complete(ctx, input)
	if err != nil {
		return st, fmt.Errorf("direct completion: %w", err)
	}
	st.Output = out
	st.Phase = agent.PhaseDone
	writeAudit(ctx, r.sink, tool.AgentResponse, input, out, r.now())
	return st, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
