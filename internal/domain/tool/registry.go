package tool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Strob0t/CodeAssist/internal/domain"
)

// Registry holds the set of available tools in registration order.
//
// A name can be registered once. A second registration under the same name
// is rejected with domain.ErrDuplicateTool and the first one stays in place.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Descriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Descriptor)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("tool name is required: %w", domain.ErrValidation)
	}
	if d.Name == None || d.Name == AgentResponse {
		return fmt.Errorf("tool name %q is reserved: %w", d.Name, domain.ErrValidation)
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler: %w", d.Name, domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q: %w", d.Name, domain.ErrDuplicateTool)
	}
	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// ByName returns the descriptor registered under name.
func (r *Registry) ByName(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	return d, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// NamesJoined returns the registered names joined by sep, for prompt construction.
func (r *Registry) NamesJoined(sep string) string {
	return strings.Join(r.Names(), sep)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
