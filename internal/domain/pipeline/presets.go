package pipeline

// MarkdownGuidelines is appended to every built-in stage prompt.
const MarkdownGuidelines = `
Please format the entire response properly in Markdown using the following guidelines:

Markdown Guidelines:
- Use clear markdown headers (###, ##)
- Use bullet points and numbered lists
- Use inline code (like ` + "`function_name`" + ` or ` + "`value`" + `) for function names and small values
- Use code blocks only for multi-line code
- Add blank lines between sections for readability
- Make markdown clean and elegant
- Do not add ` + "```markdown" + ` in the output
`

// codeSuffix closes every built-in prompt with the artifact and guidelines.
const codeSuffix = `
CODE:
{{.Code}}

{{.Guidelines}}`

// BuiltinDefinitions returns the pipeline tools shipped with the service.
func BuiltinDefinitions() []Definition {
	return []Definition{
		codeReviewer(),
		performanceOptimizer(),
		unitTestGenerator(),
	}
}

// codeReviewer: standards → best practices → security → performance → polish.
func codeReviewer() Definition {
	return Definition{
		ID:          "code_reviewer",
		Name:        "Code Reviewer",
		Description: "Reviews source code for coding standards, best practices, security vulnerabilities and performance smells, then polishes it. Input is source code; returns the reviewed code with a summary.",
		Tags:        []string{"review", "quality"},
		Title:       "CODE REVIEW",
		FinalTitle:  "REVIEWED CODE",
		Builtin:     true,
		Steps: []Step{
			{Name: "General Standards Check", Prompt: `
Review the code for coding standards and style:
- Consistent naming
- Proper indentation
- Good comments
` + codeSuffix},
			{Name: "Best Practices Check", Prompt: `
Check for best practices:
- Avoid anti-patterns
- Improve readability
- Use proper idioms
` + codeSuffix},
			{Name: "Security Vulnerabilities Check", Prompt: `
Review the code for security issues:
- Hardcoded secrets
- Input validation
- Unsafe operations
` + codeSuffix},
			{Name: "Performance Smells Check", Prompt: `
Check for performance issues:
- Unnecessary computations
- Inefficient loops
` + codeSuffix},
			{Name: "Final Review and Polish", Prompt: `
Final review:
- Clean and readable
- Remove redundant code
- Summary of improvements
` + codeSuffix},
		},
	}
}

func performanceOptimizer() Definition {
	return Definition{
		ID:          "performance_optimizer",
		Name:        "Performance Optimizer",
		Description: "Optimizes source code for performance: general, CPU and memory, I/O, concurrency and caching improvements followed by a final polish. Input is source code; returns optimized code and an optimization report.",
		Tags:        []string{"performance"},
		Title:       "PERFORMANCE OPTIMIZATION",
		FinalTitle:  "OPTIMIZED CODE",
		Builtin:     true,
		Steps: []Step{
			{Name: "General Code Optimization", Prompt: `
Review the following code and apply general performance improvements:
- Remove redundant operations
- Optimize data structures
- Improve algorithmic efficiency

Provide the improved version only.
` + codeSuffix},
			{Name: "CPU and Memory Optimization", Prompt: `
Optimize the following code for CPU and memory usage:
- Avoid repeated calculations
- Optimize loops
- Minimize memory allocation

Provide the improved version only.
` + codeSuffix},
			{Name: "I/O Optimization", Prompt: `
Optimize the following code for I/O performance:
- Reduce read/write calls
- Use buffered I/O if applicable
- Optimize network operations

Provide the improved version only.
` + codeSuffix},
			{Name: "Concurrency Optimization", Prompt: `
Optimize the following code using concurrency where appropriate:
- Identify independent tasks
- Suggest async / concurrent solutions
- Ensure thread safety

Provide the improved version only.
` + codeSuffix},
			{Name: "Caching and Memoization", Prompt: `
Review the following code and suggest caching/memoization where needed:
- Avoid redundant expensive calculations
- Suggest caching where beneficial

Provide the improved version only.
` + codeSuffix},
			{Name: "Final Review and Polish", Prompt: `
Perform final review and polishing of the code:
- Ensure readability and maintainability
- Remove any leftover debug code
- Summarize the optimizations applied

Provide the final optimized version and a summary.
` + codeSuffix},
		},
	}
}

func unitTestGenerator() Definition {
	return Definition{
		ID:          "unit_test_generator",
		Name:        "Unit Test Generator",
		Description: "Generates unit tests for the provided source code covering positive, negative and edge cases, and returns complete test code.",
		Tags:        []string{"testing"},
		Title:       "UNIT TEST GENERATION",
		FinalTitle:  "UNIT TEST CODE",
		Builtin:     true,
		Steps: []Step{
			{Name: "Identify Testable Functions", Prompt: `
Analyze the following code and identify the functions or methods that can be unit tested.
` + codeSuffix},
			{Name: "Generate Positive Test Cases", Prompt: `
Based on the identified testable functions, generate positive test cases.
` + codeSuffix},
			{Name: "Generate Negative Test Cases", Prompt: `
Generate negative test cases where input is invalid or exceptions should be handled.
` + codeSuffix},
			{Name: "Generate Edge Case Test Cases", Prompt: `
Generate edge cases for the functions like empty inputs, maximum inputs, etc.
` + codeSuffix},
			{Name: "Finalize Unit Test Code", Prompt: `
Create a full unit test suite with all positive, negative and edge cases.
` + codeSuffix},
		},
	}
}
