package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/edupipe/course-agent/embeddings"
)

const defaultMaxResults = 5

// Postgres searches the catalog and content tables written by ingestion.
// Query text is embedded through the configured embedder before the
// nearest-neighbor lookup.
type Postgres struct {
	pool       *pgxpool.Pool
	embedder   embeddings.Embedder
	maxResults int
}

func NewPostgres(pool *pgxpool.Pool, embedder embeddings.Embedder, maxResults int) *Postgres {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Postgres{pool: pool, embedder: embedder, maxResults: maxResults}
}

// Search embeds the query and returns the most similar content chunks,
// optionally restricted to a course (fuzzy name) and lesson number.
// Results are ordered by descending similarity; ties keep chunk order.
func (s *Postgres) Search(ctx context.Context, query, courseName string, lesson *int, limit int) ([]SearchResult, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = s.maxResults
	}

	var courseID *uuid.UUID
	if courseName != "" {
		id, _, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			return nil, err
		}
		courseID = &id
	}

	if courseID != nil || lesson != nil {
		matched, err := s.filterMatches(ctx, courseID, lesson)
		if err != nil {
			return nil, err
		}
		if !matched {
			return nil, fmt.Errorf("filter course=%q lesson=%s: %w", courseName, formatLesson(lesson), ErrNoMatch)
		}
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := limit * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT
			c.title,
			cc.lesson_number,
			cc.content,
			(cc.embedding <-> $1::vector) AS distance
		FROM course_chunks cc
		JOIN courses c ON c.id = cc.course_id
		WHERE ($2::uuid IS NULL OR cc.course_id = $2)
		  AND ($3::int IS NULL OR cc.lesson_number = $3)
		ORDER BY cc.embedding <-> $1::vector, cc.course_id, cc.chunk_index
		LIMIT $4
	`, pgvector.NewVector(vec), courseID, lesson, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0, limit)
	for rows.Next() {
		var item SearchResult
		var distance float64
		if scanErr := rows.Scan(&item.CourseTitle, &item.Lesson, &item.Content, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		item.Score = 1 / (1 + distance)
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if courseID != nil {
		for i := range results {
			if results[i].Lesson == nil {
				continue
			}
			link, linkErr := s.lessonLink(ctx, *courseID, *results[i].Lesson)
			if linkErr == nil {
				results[i].LessonLink = link
			}
		}
	}

	return results, nil
}

// ResolveCourseName maps a partial or fuzzy course name to the closest
// catalog entry by embedding similarity.
func (s *Postgres) ResolveCourseName(ctx context.Context, name string) (uuid.UUID, string, error) {
	vec, err := s.embedQuery(ctx, name)
	if err != nil {
		return uuid.Nil, "", err
	}

	var id uuid.UUID
	var title string
	err = s.pool.QueryRow(ctx, `
		SELECT id, title
		FROM courses
		ORDER BY embedding <-> $1::vector
		LIMIT 1
	`, pgvector.NewVector(vec)).Scan(&id, &title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, "", fmt.Errorf("no course found matching %q: %w", name, ErrNoMatch)
		}
		return uuid.Nil, "", fmt.Errorf("resolve course name: %w", err)
	}

	return id, title, nil
}

// Outline returns the catalog entry for the course best matching name.
func (s *Postgres) Outline(ctx context.Context, courseName string) (Outline, error) {
	id, _, err := s.ResolveCourseName(ctx, courseName)
	if err != nil {
		return Outline{}, err
	}

	var outline Outline
	var link *string
	var lessonsJSON []byte
	err = s.pool.QueryRow(ctx, `
		SELECT title, course_link, lessons
		FROM courses
		WHERE id = $1
	`, id).Scan(&outline.Title, &link, &lessonsJSON)
	if err != nil {
		return Outline{}, fmt.Errorf("query course outline: %w", err)
	}
	if link != nil {
		outline.Link = *link
	}
	if len(lessonsJSON) > 0 {
		if err := json.Unmarshal(lessonsJSON, &outline.Lessons); err != nil {
			return Outline{}, fmt.Errorf("decode course lessons: %w", err)
		}
	}

	return outline, nil
}

// Stats reports how many courses are indexed and a per-course summary.
func (s *Postgres) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			c.id::text,
			c.title,
			COALESCE(c.instructor, ''),
			jsonb_array_length(c.lessons),
			count(cc.id)
		FROM courses c
		LEFT JOIN course_chunks cc ON cc.course_id = c.id
		GROUP BY c.id
		ORDER BY c.title
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("query catalog stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var course CourseStats
		if err := rows.Scan(&course.ID, &course.Title, &course.Instructor, &course.LessonCount, &course.ChunkCount); err != nil {
			return Stats{}, fmt.Errorf("scan catalog stats: %w", err)
		}
		stats.Courses = append(stats.Courses, course)
	}
	if rows.Err() != nil {
		return Stats{}, rows.Err()
	}

	stats.CourseCount = len(stats.Courses)
	return stats, nil
}

func (s *Postgres) filterMatches(ctx context.Context, courseID *uuid.UUID, lesson *int) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM course_chunks
			WHERE ($1::uuid IS NULL OR course_id = $1)
			  AND ($2::int IS NULL OR lesson_number = $2)
		)
	`, courseID, lesson).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check filter matches: %w", err)
	}
	return exists, nil
}

func (s *Postgres) lessonLink(ctx context.Context, courseID uuid.UUID, lesson int) (string, error) {
	var link *string
	err := s.pool.QueryRow(ctx, `
		SELECT l->>'link'
		FROM courses, jsonb_array_elements(lessons) l
		WHERE id = $1 AND (l->>'number')::int = $2
	`, courseID, lesson).Scan(&link)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", nil
	}
	return *link, nil
}

func (s *Postgres) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return vectors[0], nil
}

func formatLesson(lesson *int) string {
	if lesson == nil {
		return "any"
	}
	return fmt.Sprintf("%d", *lesson)
}
