package a2a

import "github.com/Strob0t/CodeAssist/internal/domain/tool"

// Version is reported in the agent card.
const Version = "0.1.0"

// BuildAgentCard returns the AgentCard for the service. Every registered
// tool is advertised as a skill.
func BuildAgentCard(baseURL string, tools []tool.Descriptor) AgentCard {
	skills := make([]Skill, 0, len(tools))
	for _, d := range tools {
		skills = append(skills, Skill{
			ID:          d.Name,
			Name:        d.Name,
			Description: d.Description,
			Tags:        d.Tags,
			InputModes:  []string{"text"},
			OutputModes: []string{"text"},
		})
	}

	card := AgentCard{
		Name:        "CodeAssist",
		Description: "Routes coding requests to review, optimization, test generation and code generation tools",
		URL:         baseURL,
		Version:     Version,
		Skills:      skills,
	}
	card.Capabilities.Streaming = false
	return card
}
