// Package agent defines the state carried through the planner/executor graph.
package agent

// Phase is the position of a run in the graph.
type Phase string

const (
	PhaseStart   Phase = "start"
	PhasePlanned Phase = "planned"
	PhaseDone    Phase = "done"
)

// State flows through a single graph run. Input is never modified. The
// planner sets SelectedTool and the executor sets Output.
type State struct {
	Input        string `json:"input"`
	SelectedTool string `json:"selected_tool"`
	Output       string `json:"output"`
	Phase        Phase  `json:"phase"`
}

// NewState returns a state at the start of the graph.
func NewState(input string) State {
	return State{Input: input, Phase: PhaseStart}
}
