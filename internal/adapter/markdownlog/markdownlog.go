// Package markdownlog writes one markdown file per audited tool invocation.
package markdownlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Strob0t/CodeAssist/internal/port/audit"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Sink is an audit.Sink that stores records as markdown files under a directory.
type Sink struct {
	dir string
	now func() time.Time
}

var _ audit.Sink = (*Sink)(nil)

// New creates the directory if needed and returns a Sink writing into it.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir %s: %w", dir, err)
	}
	return &Sink{dir: dir, now: time.Now}, nil
}

// Write stores rec as <dir>/<tool>_<timestamp>_<id>.md.
func (s *Sink) Write(ctx context.Context, rec audit.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ts := rec.CreatedAt
	if ts.IsZero() {
		ts = s.now()
	}
	name := fmt.Sprintf("%s_%s", sanitize(rec.Tool), ts.UTC().Format("20060102T150405.000000000Z"))
	if rec.ID != "" {
		name += "_" + sanitize(rec.ID)
	}
	path := filepath.Join(s.dir, name+".md")

	if err := os.WriteFile(path, []byte(render(rec, ts)), 0o600); err != nil {
		return fmt.Errorf("write audit file %s: %w", path, err)
	}
	return nil
}

func render(rec audit.Record, ts time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tool Output: %s\n\n", rec.Tool)
	fmt.Fprintf(&b, "- **Time:** %s\n", ts.UTC().Format(time.RFC3339))
	if rec.TaskID != "" {
		fmt.Fprintf(&b, "- **Task:** %s\n", rec.TaskID)
	}
	if rec.RequestID != "" {
		fmt.Fprintf(&b, "- **Request:** %s\n", rec.RequestID)
	}
	b.WriteString("\n## Input\n\n```\n")
	b.WriteString(rec.Input)
	b.WriteString("\n```\n\n## Output\n\n")
	b.WriteString(rec.Output)
	b.WriteString("\n")
	return b.String()
}

func sanitize(s string) string {
	s = unsafeName.ReplaceAllString(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}
