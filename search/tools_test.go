package search_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/edupipe/course-agent/search"
	"github.com/edupipe/course-agent/store"
)

type stubStore struct {
	results    []store.SearchResult
	searchErr  error
	outline    store.Outline
	outlineErr error

	gotQuery  string
	gotCourse string
	gotLesson *int
	gotLimit  int
}

func (s *stubStore) Search(ctx context.Context, query, courseName string, lesson *int, limit int) ([]store.SearchResult, error) {
	s.gotQuery = query
	s.gotCourse = courseName
	s.gotLesson = lesson
	s.gotLimit = limit
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results, nil
}

func (s *stubStore) Outline(ctx context.Context, courseName string) (store.Outline, error) {
	if s.outlineErr != nil {
		return store.Outline{}, s.outlineErr
	}
	return s.outline, nil
}

var _ search.Store = (*stubStore)(nil)

func lessonPtr(n int) *int { return &n }

func TestCourseSearchToolFormatsResults(t *testing.T) {
	st := &stubStore{results: []store.SearchResult{
		{
			CourseTitle: "MCP Course",
			Lesson:      lessonPtr(1),
			LessonLink:  "https://example.com/lesson1",
			Content:     "MCP servers provide external tool access.",
			Score:       0.9,
		},
		{
			CourseTitle: "MCP Course",
			Content:     "General course notes.",
			Score:       0.7,
		},
	}}
	tool := search.NewCourseSearchTool(st, 5)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"mcp servers","course_name":"MCP","lesson_number":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if st.gotQuery != "mcp servers" || st.gotCourse != "MCP" {
		t.Fatalf("unexpected store call: query=%q course=%q", st.gotQuery, st.gotCourse)
	}
	if st.gotLesson == nil || *st.gotLesson != 1 {
		t.Fatalf("expected lesson filter 1, got %v", st.gotLesson)
	}

	if !strings.Contains(result, "[MCP Course - Lesson 1]\nMCP servers provide external tool access.") {
		t.Fatalf("unexpected result formatting: %q", result)
	}
	if !strings.Contains(result, "[MCP Course]\nGeneral course notes.") {
		t.Fatalf("expected header without lesson for unnumbered chunk: %q", result)
	}

	sources := tool.LastSources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Label != "MCP Course - Lesson 1" || sources[0].Link != "https://example.com/lesson1" {
		t.Fatalf("unexpected first source: %+v", sources[0])
	}

	tool.ResetSources()
	if tool.LastSources() != nil {
		t.Fatal("expected sources to be cleared after reset")
	}
}

func TestCourseSearchToolFilterNoMatch(t *testing.T) {
	st := &stubStore{searchErr: fmt.Errorf("filter course=%q lesson=any: %w", "Nonexistent", store.ErrNoMatch)}
	tool := search.NewCourseSearchTool(st, 5)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"anything","course_name":"Nonexistent"}`))
	if err != nil {
		t.Fatalf("expected no-match to be recovered, got error: %v", err)
	}
	if result != "No relevant content found in course 'Nonexistent'." {
		t.Fatalf("unexpected message: %q", result)
	}
	if len(tool.LastSources()) != 0 {
		t.Fatal("expected no sources for a no-match search")
	}
}

func TestCourseSearchToolEmptyResults(t *testing.T) {
	tool := search.NewCourseSearchTool(&stubStore{}, 5)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"anything","lesson_number":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "No relevant content found in lesson 3." {
		t.Fatalf("unexpected message: %q", result)
	}
}

func TestCourseSearchToolPropagatesStoreFailure(t *testing.T) {
	st := &stubStore{searchErr: fmt.Errorf("connection refused")}
	tool := search.NewCourseSearchTool(st, 5)

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"anything"}`)); err == nil {
		t.Fatal("expected store failure to propagate")
	}
}

func TestCourseSearchToolRequiresQuery(t *testing.T) {
	tool := search.NewCourseSearchTool(&stubStore{}, 5)
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"  "}`)); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestCourseOutlineToolFormatsOutline(t *testing.T) {
	st := &stubStore{outline: store.Outline{
		Title: "MCP Course",
		Link:  "https://example.com/mcp",
		Lessons: []store.LessonInfo{
			{Number: 0, Title: "Introduction"},
			{Number: 1, Title: "Why MCP"},
		},
	}}
	tool := search.NewCourseOutlineTool(st)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"course_name":"MCP"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Course: MCP Course",
		"Course Link: https://example.com/mcp",
		"Lessons (2 total):",
		"Lesson 0: Introduction",
		"Lesson 1: Why MCP",
	} {
		if !strings.Contains(result, want) {
			t.Fatalf("expected outline to contain %q, got:\n%s", want, result)
		}
	}
}

func TestCourseOutlineToolNoMatch(t *testing.T) {
	st := &stubStore{outlineErr: fmt.Errorf("no course found matching %q: %w", "Ghost", store.ErrNoMatch)}
	tool := search.NewCourseOutlineTool(st)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"course_name":"Ghost"}`))
	if err != nil {
		t.Fatalf("expected no-match to be recovered, got error: %v", err)
	}
	if result != "No course found matching 'Ghost'" {
		t.Fatalf("unexpected message: %q", result)
	}
}

func TestManagerDispatchAndSources(t *testing.T) {
	st := &stubStore{results: []store.SearchResult{
		{CourseTitle: "MCP Course", Lesson: lessonPtr(2), Content: "content"},
	}}
	searchTool := search.NewCourseSearchTool(st, 5)
	outlineTool := search.NewCourseOutlineTool(st)

	manager, err := search.NewManager(searchTool, outlineTool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defs := manager.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 tool definitions, got %d", len(defs))
	}
	if defs[0].Name != "search_course_content" || defs[1].Name != "get_course_outline" {
		t.Fatalf("unexpected definition order: %s, %s", defs[0].Name, defs[1].Name)
	}

	if _, err := manager.Execute(context.Background(), "search_course_content", json.RawMessage(`{"query":"q"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sources := manager.LastSources()
	if len(sources) != 1 || sources[0].Label != "MCP Course - Lesson 2" {
		t.Fatalf("unexpected sources: %+v", sources)
	}

	manager.ResetSources()
	if manager.LastSources() != nil {
		t.Fatal("expected sources cleared after reset")
	}
}

func TestManagerUnknownTool(t *testing.T) {
	manager, err := search.NewManager()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := manager.Execute(context.Background(), "bogus", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Tool 'bogus' not found" {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestManagerRejectsDuplicateTools(t *testing.T) {
	st := &stubStore{}
	if _, err := search.NewManager(search.NewCourseSearchTool(st, 5), search.NewCourseSearchTool(st, 5)); err == nil {
		t.Fatal("expected error for duplicate tool registration")
	}
}
