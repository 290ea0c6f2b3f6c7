// Package chat orchestrates a query: session history in, optional tool
// rounds against the course index, answer plus citations out.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/edupipe/course-agent/llm"
	"github.com/edupipe/course-agent/search"
	"github.com/edupipe/course-agent/session"
)

// maxToolRounds bounds sequential tool invocations per query. After the
// last round the model is called once more without tools to force a text
// answer.
const maxToolRounds = 2

type Service struct {
	llm      llm.Client
	tools    *search.Manager
	sessions *session.Store
	logger   *log.Logger
}

func NewService(client llm.Client, tools *search.Manager, sessions *session.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		llm:      client,
		tools:    tools,
		sessions: sessions,
		logger:   logger,
	}
}

// Answer handles one user query. A blank sessionID starts a new session;
// the returned Response carries the id the exchange was recorded under.
func (s *Service) Answer(ctx context.Context, question, sessionID string) (Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Response{}, fmt.Errorf("question cannot be empty")
	}
	if s.llm == nil {
		return Response{}, fmt.Errorf("llm client is not configured")
	}
	if s.sessions == nil {
		return Response{}, fmt.Errorf("session store is not configured")
	}

	if sessionID == "" {
		sessionID = s.sessions.NewID()
	}

	messages := make([]llm.Message, 0, 8)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, turn := range s.sessions.History(sessionID) {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	var defs []llm.Tool
	if s.tools != nil {
		defs = s.tools.Definitions()
		s.tools.ResetSources()
	}

	answer, err := s.runToolLoop(ctx, messages, defs)
	if err != nil {
		return Response{}, err
	}

	var sources []search.Source
	if s.tools != nil {
		sources = dedupeSources(s.tools.LastSources())
		s.tools.ResetSources()
	}
	if len(sources) == 0 {
		s.logger.Printf("no sources cited for session %s", sessionID)
	}

	s.sessions.AppendExchange(sessionID, question, answer)

	return Response{Answer: answer, Sources: sources, SessionID: sessionID}, nil
}

// runToolLoop generates until the model stops requesting tools or the
// round budget is spent, executing requested tools between rounds.
func (s *Service) runToolLoop(ctx context.Context, messages []llm.Message, defs []llm.Tool) (string, error) {
	for round := 0; ; round++ {
		toolset := defs
		if round >= maxToolRounds {
			toolset = nil
		}

		completion, err := s.llm.Generate(ctx, messages, toolset)
		if err != nil {
			return "", fmt.Errorf("generate answer: %w", errors.Join(ErrGeneration, err))
		}

		if len(completion.ToolCalls) == 0 || toolset == nil || s.tools == nil {
			return strings.TrimSpace(completion.Content), nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			result, execErr := s.tools.Execute(ctx, call.Name, call.Arguments)
			if execErr != nil {
				return "", fmt.Errorf("execute tool %s: %w", call.Name, execErr)
			}
			s.logger.Printf("tool %s executed (round %d)", call.Name, round+1)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

func dedupeSources(sources []search.Source) []search.Source {
	seen := make(map[string]struct{}, len(sources))
	result := make([]search.Source, 0, len(sources))
	for _, source := range sources {
		if _, ok := seen[source.Label]; ok {
			continue
		}
		seen[source.Label] = struct{}{}
		result = append(result, source)
	}
	return result
}

const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to tools for course information.

Available Tools:
1. search_course_content: Search for specific content within course materials
2. get_course_outline: Get a course's complete structure including title, course link, and all lessons

Tool Usage:
- Use get_course_outline for questions about course structure or what lessons a course contains
- Use search_course_content for questions about specific content or detailed educational materials
- Up to 2 sequential tool calls are allowed per query
- If a tool yields no results, state this clearly without offering alternatives

Response Protocol:
- General knowledge questions: answer from existing knowledge without tools
- Course-specific questions: use the appropriate tool first, then answer
- Provide direct answers only; do not mention the search or the tools
- Keep responses brief, clear, and educational`
