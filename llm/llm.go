package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edupipe/course-agent/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single conversation turn. Assistant turns may carry tool
// calls; tool turns carry the result of one call, keyed by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is the model's request to invoke a declared tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Tool declares a capability the model may invoke. Parameters is a JSON
// schema object describing the expected arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Completion is one generation result: either final answer text or a set
// of tool calls the caller must execute and feed back.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

type Client interface {
	Generate(ctx context.Context, messages []Message, tools []Tool) (Completion, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
