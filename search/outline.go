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

const courseOutlineSchema = `{
	"type": "object",
	"properties": {
		"course_name": {
			"type": "string",
			"description": "Course title to get outline for (partial matches work, e.g. 'MCP', 'Introduction')"
		}
	},
	"required": ["course_name"]
}`

// CourseOutlineTool returns a course's title, link, and full lesson list.
type CourseOutlineTool struct {
	store Store
}

type courseOutlineArgs struct {
	CourseName string `json:"course_name"`
}

func NewCourseOutlineTool(s Store) *CourseOutlineTool {
	return &CourseOutlineTool{store: s}
}

func (t *CourseOutlineTool) Definition() llm.Tool {
	return llm.Tool{
		Name:        "get_course_outline",
		Description: "Get the complete outline of a course including its title, link, and all lessons with their numbers and titles. Use this for questions about course structure, what lessons are in a course, or course overview.",
		Parameters:  json.RawMessage(courseOutlineSchema),
	}
}

func (t *CourseOutlineTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var parsed courseOutlineArgs
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("decode outline arguments: %w", err)
	}
	if strings.TrimSpace(parsed.CourseName) == "" {
		return "", fmt.Errorf("course_name is required")
	}

	outline, err := t.store.Outline(ctx, parsed.CourseName)
	if err != nil {
		if errors.Is(err, store.ErrNoMatch) {
			return fmt.Sprintf("No course found matching '%s'", parsed.CourseName), nil
		}
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Course: " + outline.Title)
	if outline.Link != "" {
		sb.WriteString("\nCourse Link: " + outline.Link)
	}

	if len(outline.Lessons) == 0 {
		sb.WriteString("\n\nNo lessons found for this course.")
		return sb.String(), nil
	}

	sb.WriteString(fmt.Sprintf("\n\nLessons (%d total):", len(outline.Lessons)))
	for _, lesson := range outline.Lessons {
		sb.WriteString(fmt.Sprintf("\n  Lesson %d: %s", lesson.Number, lesson.Title))
	}

	return sb.String(), nil
}

var _ Tool = (*CourseOutlineTool)(nil)
