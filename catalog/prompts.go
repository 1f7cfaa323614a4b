package catalog

import (
	"context"
	"fmt"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
)

func prompts() []mcpservice.StaticPrompt {
	return []mcpservice.StaticPrompt{
		{
			Descriptor: mcp.Prompt{
				Name:        "greeting",
				Description: "Generate a greeting message",
				Arguments: []mcp.PromptArgument{
					{Name: "name", Description: "Name to greet", Required: true},
					{Name: "style", Description: "Greeting style (formal, casual, enthusiastic)"},
				},
			},
			Handler: greeting,
		},
		{
			Descriptor: mcp.Prompt{
				Name:        "explain_concept",
				Description: "Generate an explanation for a concept",
				Arguments: []mcp.PromptArgument{
					{Name: "concept", Description: "Concept to explain", Required: true},
					{Name: "audience", Description: "Target audience (beginner, intermediate, advanced)"},
				},
			},
			Handler: explainConcept,
		},
	}
}

func greeting(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	name := args["name"]
	style := args["style"]
	if style == "" {
		style = "casual"
	}

	var text string
	switch style {
	case "formal":
		text = fmt.Sprintf("Good day, %s. I hope you are well.", name)
	case "enthusiastic":
		text = fmt.Sprintf("Hey there, %s! Great to see you! 🎉", name)
	default:
		text = fmt.Sprintf("Hi %s! How's it going?", name)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("%s greeting for %s", style, name),
		Messages:    []mcp.PromptMessage{{Role: mcp.RoleUser, Content: mcp.TextContent(text)}},
	}, nil
}

func explainConcept(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	concept := args["concept"]
	audience := args["audience"]
	if audience == "" {
		audience = "beginner"
	}

	text := fmt.Sprintf("Please explain the concept of \"%s\" in a way that a %s would understand. Include examples and practical applications where relevant.", concept, audience)
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explain %s for %s audience", concept, audience),
		Messages:    []mcp.PromptMessage{{Role: mcp.RoleUser, Content: mcp.TextContent(text)}},
	}, nil
}
