// Package tool defines capability handlers ("tools") and the registry they attach to.
package tool

import "context"

// None is the planner sentinel for "no registered tool matched".
const None = "none"

// AgentResponse is the reserved pseudo-tool name used to audit requests
// that were answered without a registered tool.
const AgentResponse = "agent_response"

// Handler is the uniform invocation contract every tool implements,
// regardless of whether its implementation blocks on I/O.
type Handler interface {
	Invoke(ctx context.Context, input string) (string, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, input string) (string, error)

// Invoke calls f(ctx, input).
func (f HandlerFunc) Invoke(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// Descriptor describes a registered tool.
type Descriptor struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags,omitempty"`
	SupportsAsync bool     `json:"supports_async"`
	Handler       Handler  `json:"-"`
}

// HasTag reports whether the descriptor carries the given tag.
func (d *Descriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
