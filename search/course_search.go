package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/edupipe/course-agent/llm"
	"github.com/edupipe/course-agent/store"
)

const courseSearchSchema = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "What to search for in the course content"
		},
		"course_name": {
			"type": "string",
			"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')"
		},
		"lesson_number": {
			"type": "integer",
			"description": "Specific lesson number to search within (e.g. 1, 2, 3)"
		}
	},
	"required": ["query"]
}`

// CourseSearchTool searches course content with fuzzy course name matching
// and optional lesson filtering. It remembers the sources of its last run
// so the orchestrator can cite them.
type CourseSearchTool struct {
	store       Store
	limit       int
	lastSources []Source
}

type courseSearchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

func NewCourseSearchTool(s Store, limit int) *CourseSearchTool {
	return &CourseSearchTool{store: s, limit: limit}
}

func (t *CourseSearchTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters:  json.RawMessage(courseSearchSchema),
	}
}

func (t *CourseSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed courseSearchArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("decode search arguments: %w", err)
	}
	if strings.TrimSpace(parsed.Query) == "" {
		return "", fmt.Errorf("search query is required")
	}

	results, err := t.store.Search(ctx, parsed.Query, parsed.CourseName, parsed.LessonNumber, t.limit)
	if err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			return noContentMessage(parsed.CourseName, parsed.LessonNumber), nil
		}
		return "", err
	}

	if len(results) == 0 {
		return noContentMessage(parsed.CourseName, parsed.LessonNumber), nil
	}

	return t.formatResults(results), nil
}

func (t *CourseSearchTool) LastSources() []Source {
	return t.lastSources
}

func (t *CourseSearchTool) ResetSources() {
	t.lastSources = nil
}

// formatResults renders chunks with a course/lesson context header and
// records one source per chunk for the UI.
func (t *CourseSearchTool) formatResults(results []store.SearchResult) string {
	formatted := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))

	for _, result := range results {
		label := result.CourseTitle
		if result.Lesson != nil {
			label += fmt.Sprintf(" - Lesson %d", *result.Lesson)
		}

		sources = append(sources, Source{Label: label, Link: result.LessonLink})
		formatted = append(formatted, fmt.Sprintf("[%s]\n%s", label, result.Content))
	}

	t.lastSources = sources
	return strings.Join(formatted, "\n\n")
}

func noContentMessage(courseName string, lesson *int) string {
	msg := "No relevant content found"
	if courseName != "" {
		msg += fmt.Sprintf(" in course '%s'", courseName)
	}
	if lesson != nil {
		msg += fmt.Sprintf(" in lesson %d", *lesson)
	}
	return msg + "."
}

var (
	_ Tool          = (*CourseSearchTool)(nil)
	_ sourceTracker = (*CourseSearchTool)(nil)
)
