// Package completion defines the port for the language-model backend.
package completion

import "context"

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Completer.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// HealthChecker is implemented by providers that can report reachability.
type HealthChecker interface {
	Health(ctx context.Context) (bool, error)
}
