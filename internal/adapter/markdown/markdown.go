// Package markdown renders task results (markdown reports) to sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Renderer converts markdown to HTML and strips anything unsafe.
// It is safe for concurrent use.
type Renderer struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewRenderer returns a Renderer with GitHub-flavored markdown enabled.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")

	return &Renderer{md: md, sanitizer: policy}
}

// Render converts source to sanitized HTML.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return r.sanitizer.Sanitize(buf.String()), nil
}

// Page wraps rendered HTML in a minimal standalone document.
func (r *Renderer) Page(title, source string) (string, error) {
	body, err := r.Render(source)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(pageTemplate, bluemonday.StrictPolicy().Sanitize(title), body), nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>body{font-family:sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem}pre{background:#f6f8fa;padding:1rem;overflow:auto}</style>
</head>
<body>
%s</body>
</html>
`
