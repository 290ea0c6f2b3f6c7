// Package search exposes the course index to the LLM as invocable tools.
package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edupipe/course-agent/llm"
	"github.com/edupipe/course-agent/store"
)

// Store is the slice of the course store the tools need.
type Store interface {
	Search(ctx context.Context, query, courseName string, lesson *int, limit int) ([]store.SearchResult, error)
	Outline(ctx context.Context, courseName string) (store.Outline, error)
}

var _ Store = (*store.Postgres)(nil)

// Source is a citation surfaced to the user alongside the answer.
type Source struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

// Tool is a capability the model may invoke. Execute returns the text fed
// back to the model as the tool result.
type Tool interface {
	Definition() llm.Tool
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// sourceTracker is implemented by tools that record citations while
// executing.
type sourceTracker interface {
	LastSources() []Source
	ResetSources()
}

// Manager registers tools and dispatches the model's invocation requests.
type Manager struct {
	tools map[string]Tool
	order []string
}

func NewManager(tools ...Tool) (*Manager, error) {
	m := &Manager{tools: make(map[string]Tool)}
	for _, tool := range tools {
		if err := m.Register(tool); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) Register(tool Tool) error {
	name := tool.Definition().Name
	if name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if _, exists := m.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	m.tools[name] = tool
	m.order = append(m.order, name)
	return nil
}

// Definitions lists all registered tools in registration order.
func (m *Manager) Definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Execute runs the named tool. An unknown name yields a result string the
// model can recover from rather than an error.
func (m *Manager) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, ok := m.tools[name]
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}
	return tool.Execute(ctx, args)
}

// LastSources returns the citations recorded by the most recent search.
func (m *Manager) LastSources() []Source {
	for _, name := range m.order {
		if tracker, ok := m.tools[name].(sourceTracker); ok {
			if sources := tracker.LastSources(); len(sources) > 0 {
				return sources
			}
		}
	}
	return nil
}

// ResetSources clears recorded citations on every tracking tool.
func (m *Manager) ResetSources() {
	for _, tool := range m.tools {
		if tracker, ok := tool.(sourceTracker); ok {
			tracker.ResetSources()
		}
	}
}
