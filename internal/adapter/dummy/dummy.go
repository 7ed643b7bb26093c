// Package dummy is an offline completion provider that echoes its prompt.
package dummy

import "context"

// Prefix marks every echoed completion.
const Prefix = "(DummyLLM) "

// Completer echoes prompts back. It never fails unless ctx is done.
type Completer struct{}

// New returns a dummy completer.
func New() *Completer {
	return &Completer{}
}

// Complete returns Prefix + prompt.
func (*Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Prefix + prompt, nil
}

// Model returns the pseudo model name.
func (*Completer) Model() string {
	return "dummy"
}
