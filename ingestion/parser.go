package ingestion

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Course is a parsed course document: header metadata plus the ordered
// lessons that hold the actual text to index.
type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson
}

// Lesson is one numbered unit of a course.
type Lesson struct {
	Number int
	Title  string
	Link   string
	Text   string
}

// DocumentFormat enumerates supported document payload formats.
type DocumentFormat string

const (
	FormatUnknown  DocumentFormat = ""
	FormatScript   DocumentFormat = "script"
	FormatMarkdown DocumentFormat = "markdown"
	FormatPDF      DocumentFormat = "pdf"
)

// DetectFormat infers a document format from the provided path's extension.
func DetectFormat(path string) DocumentFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return FormatScript
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.+)$`)

// ParseCourse parses a course document in the format matching its path
// extension. Script files must carry a "Course Title:" header; PDF and
// markdown files fall back to a single-lesson course named after the file.
func ParseCourse(path string, data []byte) (*Course, error) {
	switch DetectFormat(path) {
	case FormatScript:
		return parseScript(path, string(data))
	case FormatMarkdown:
		return parseMarkdown(path, string(data))
	case FormatPDF:
		return parsePDF(path, data)
	default:
		return nil, fmt.Errorf("unsupported document format: %s", filepath.Ext(path))
	}
}

// parseScript reads the course script layout: a header block of
// "Course Title:", "Course Link:" and "Course Instructor:" lines followed
// by "Lesson N: Title" sections, each optionally opening with a
// "Lesson Link:" line.
func parseScript(path, content string) (*Course, error) {
	lines := strings.Split(normalizeText(content), "\n")

	course := &Course{}
	bodyStart := len(lines)
headerLoop:
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			bodyStart = i + 1
		case lessonMarker.MatchString(trimmed):
			bodyStart = i
			break headerLoop
		case strings.HasPrefix(trimmed, "Course Title:"):
			course.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Title:"))
			bodyStart = i + 1
		case strings.HasPrefix(trimmed, "Course Link:"):
			course.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Link:"))
			bodyStart = i + 1
		case strings.HasPrefix(trimmed, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Instructor:"))
			bodyStart = i + 1
		default:
			// Header block ends at the first line that is neither a known
			// header nor a lesson marker; it belongs to the body.
			bodyStart = i
			break headerLoop
		}
	}

	if course.Title == "" {
		return nil, fmt.Errorf("document %s has no Course Title header", filepath.Base(path))
	}

	var current *Lesson
	var preamble []string
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.Join(body, "\n"))
		course.Lessons = append(course.Lessons, *current)
		current = nil
		body = nil
	}

	for _, line := range lines[bodyStart:] {
		trimmed := strings.TrimSpace(line)
		if match := lessonMarker.FindStringSubmatch(trimmed); match != nil {
			flush()
			number, err := strconv.Atoi(match[1])
			if err != nil {
				return nil, fmt.Errorf("lesson number in %q: %w", trimmed, err)
			}
			current = &Lesson{Number: number, Title: strings.TrimSpace(match[2])}
			continue
		}
		if current != nil && current.Link == "" && len(body) == 0 && strings.HasPrefix(trimmed, "Lesson Link:") {
			current.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, "Lesson Link:"))
			continue
		}
		if current == nil {
			preamble = append(preamble, line)
			continue
		}
		body = append(body, line)
	}
	flush()

	// Text between the header and the first lesson marker becomes an
	// implicit introduction unless an explicit lesson 0 exists.
	if intro := strings.TrimSpace(strings.Join(preamble, "\n")); intro != "" && !hasLesson(course.Lessons, 0) {
		course.Lessons = append([]Lesson{{Number: 0, Title: "Introduction", Text: intro}}, course.Lessons...)
	}

	if len(course.Lessons) == 0 {
		return nil, fmt.Errorf("document %s has no lesson content", filepath.Base(path))
	}

	return course, nil
}

func parseMarkdown(path, content string) (*Course, error) {
	text := strings.TrimSpace(normalizeText(content))
	if text == "" {
		return nil, fmt.Errorf("document %s is empty", filepath.Base(path))
	}

	title := extractMarkdownTitle(text, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return &Course{
		Title:   title,
		Lessons: []Lesson{{Number: 0, Title: title, Text: text}},
	}, nil
}

func parsePDF(path string, data []byte) (*Course, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	text := strings.TrimSpace(normalizeText(buf.String()))
	if text == "" {
		return nil, fmt.Errorf("document %s has no extractable text", filepath.Base(path))
	}

	title := firstNonEmptyLine(text)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &Course{
		Title:   title,
		Lessons: []Lesson{{Number: 0, Title: title, Text: text}},
	}, nil
}

func hasLesson(lessons []Lesson, number int) bool {
	for _, lesson := range lessons {
		if lesson.Number == number {
			return true
		}
	}
	return false
}

func normalizeText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

func extractMarkdownTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return fallback
}

func firstNonEmptyLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
