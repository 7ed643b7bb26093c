package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	cfotel "github.com/Strob0t/CodeAssist/internal/adapter/otel"
	"github.com/Strob0t/CodeAssist/internal/domain/pipeline"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/port/audit"
	"github.com/Strob0t/CodeAssist/internal/port/completion"
)

// CodeGeneratorName is the registry name of the single-shot generation tool.
const CodeGeneratorName = "code_generator"

const defaultLanguage = "Python"

var languageLine = regexp.MustCompile(`(?i)^\s*language\s*:\s*(.+?)\s*$`)

const codeGenerationPrompt = `You are a professional software engineer.
Generate production-quality code based on the given technical requirement.

Requirement:
%s

Target Programming Language:
%s

%s

IMPORTANT:
- Return only the code with minimal explanation if necessary.
- Use correct syntax and formatting.
- Wrap multi-line code inside proper code blocks like ` + "```python, ```java" + `, etc based on the language.

Start now.
`

// ToolDeps are shared by every tool constructor.
type ToolDeps struct {
	Completer completion.Completer
	Audit     audit.Sink
	Metrics   *cfotel.Metrics // optional
}

// ParseGenerationRequest splits code generator input into requirement and
// language. A first line of the form "language: Go" selects the language;
// otherwise Python is assumed.
func ParseGenerationRequest(input string) (requirement, language string) {
	first, rest, _ := strings.Cut(input, "\n")
	if m := languageLine.FindStringSubmatch(first); m != nil {
		return strings.TrimSpace(rest), m[1]
	}
	return strings.TrimSpace(input), defaultLanguage
}

// CodeGeneratorLoader builds the single-shot code generation tool.
func CodeGeneratorLoader(deps ToolDeps) tool.Loader {
	return func() (tool.Descriptor, error) {
		if deps.Completer == nil {
			return tool.Descriptor{}, fmt.Errorf("%s: completer is required", CodeGeneratorName)
		}
		adapter := NewSingleShotTool(CodeGeneratorName, func(ctx context.Context, input string) (string, error) {
			requirement, language := ParseGenerationRequest(input)
			return deps.Completer.Complete(ctx, fmt.Sprintf(codeGenerationPrompt, requirement, language, pipeline.MarkdownGuidelines))
		}, deps.Audit)
		adapter.SetMetrics(deps.Metrics)

		return tool.Descriptor{
			Name:          CodeGeneratorName,
			Description:   "Generates production-quality code from a technical requirement. Start the input with 'language: <name>' to pick the target language.",
			Tags:          []string{"generation"},
			SupportsAsync: true,
			Handler:       adapter,
		}, nil
	}
}

// PipelineLoader builds a pipeline tool from a definition. The tool is
// registered under the definition ID.
func PipelineLoader(def pipeline.Definition, deps ToolDeps) tool.Loader {
	return func() (tool.Descriptor, error) {
		if deps.Completer == nil {
			return tool.Descriptor{}, fmt.Errorf("%s: completer is required", def.ID)
		}
		if err := def.Validate(); err != nil {
			return tool.Descriptor{}, fmt.Errorf("pipeline %s: %w", def.ID, err)
		}
		stages, err := def.Stages(deps.Completer)
		if err != nil {
			return tool.Descriptor{}, err
		}

		runner := pipeline.Runner{}
		if deps.Metrics != nil {
			runner.Observer = cfotel.PipelineObserver(deps.Metrics)
		}
		adapter := NewPipelineTool(def.ID, runner, stages, def.Format, deps.Audit)
		adapter.SetMetrics(deps.Metrics)

		return tool.Descriptor{
			Name:          def.ID,
			Description:   def.Description,
			Tags:          def.Tags,
			SupportsAsync: true,
			Handler:       adapter,
		}, nil
	}
}

// BuiltinLoaders returns the loaders for every tool shipped with the service,
// followed by one loader per extra definition (user pipelines).
func BuiltinLoaders(deps ToolDeps, extra ...pipeline.Definition) []tool.Loader {
	defs := pipeline.BuiltinDefinitions()
	loaders := make([]tool.Loader, 0, len(defs)+len(extra)+1)
	for _, d := range defs {
		loaders = append(loaders, PipelineLoader(d, deps))
	}
	loaders = append(loaders, CodeGeneratorLoader(deps))
	for _, d := range extra {
		loaders = append(loaders, PipelineLoader(d, deps))
	}
	return loaders
}
