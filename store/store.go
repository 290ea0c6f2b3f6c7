// Package store implements the query side of the course index: catalog
// lookups (course name resolution, outlines, stats) and content chunk
// similarity search with course/lesson filtering.
package store

import "errors"

// ErrNoMatch reports that a course or lesson filter matched no indexed
// entries at all. It is distinct from a search that ran against matching
// entries but surfaced nothing relevant, which returns an empty result set.
var ErrNoMatch = errors.New("no matching indexed content")

// SearchResult is one scored content chunk. Lesson is nil for chunks that
// belong to no numbered lesson.
type SearchResult struct {
	CourseTitle string
	Lesson      *int
	LessonLink  string
	Content     string
	Score       float64
}

// LessonInfo describes one lesson in a course outline. The same shape is
// stored in the catalog's lessons column.
type LessonInfo struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Outline is a course's structure as kept in the catalog.
type Outline struct {
	Title   string
	Link    string
	Lessons []LessonInfo
}

// CourseStats summarizes one indexed course.
type CourseStats struct {
	ID          string
	Title       string
	Instructor  string
	LessonCount int
	ChunkCount  int
}

// Stats summarizes the whole catalog.
type Stats struct {
	CourseCount int
	Courses     []CourseStats
}
