package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/edupipe/course-agent/config"
	"github.com/edupipe/course-agent/database"
	"github.com/edupipe/course-agent/embeddings"
	"github.com/edupipe/course-agent/store"
)

// weightedEmbedder maps known texts to vectors that differ only in their
// first component, so distances in the index are fully controlled by the
// registered weights.
type weightedEmbedder struct {
	dimension int
	weights   map[string]float32
}

func (e *weightedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		weight, ok := e.weights[text]
		if !ok {
			return nil, fmt.Errorf("no stub vector registered for %q", text)
		}
		vectors[i] = axisVector(e.dimension, weight)
	}
	return vectors, nil
}

var _ embeddings.Embedder = (*weightedEmbedder)(nil)

func axisVector(dimension int, weight float32) []float32 {
	vec := make([]float32, dimension)
	vec[0] = weight
	return vec
}

func lessonPtr(n int) *int { return &n }

// Seeds two courses with hand-placed embeddings: Alpha (catalog weight
// 1.0) with chunks at weights 1.0 (lesson 1) and 0.6 (lesson 2), Beta
// (catalog weight -1.0) with one chunk at weight 0.2 (lesson 1). A query
// at weight 0.9 therefore ranks alpha-1, alpha-2, beta.
func TestSearchRankingAgainstIndex(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database integration checks")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	dim := cfg.Embeddings.Dimension
	if err := database.EnsureSchema(ctx, pool, dim); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	alphaID := uuid.New()
	betaID := uuid.New()
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "DELETE FROM courses WHERE id = ANY($1)", []uuid.UUID{alphaID, betaID})
	})

	if _, err := pool.Exec(ctx, `
		INSERT INTO courses (id, title, course_link, instructor, lessons, sha256, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()),
		       ($8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	`,
		alphaID, "Integration Alpha Course", "https://example.com/alpha", "Ada",
		`[{"number":1,"title":"One","link":"https://example.com/alpha/1"},{"number":2,"title":"Two"}]`,
		"sha-alpha", pgvector.NewVector(axisVector(dim, 1.0)),
		betaID, "Integration Beta Course", "https://example.com/beta", "Grace",
		`[{"number":1,"title":"Only"}]`,
		"sha-beta", pgvector.NewVector(axisVector(dim, -1.0)),
	); err != nil {
		t.Fatalf("insert courses: %v", err)
	}

	if _, err := pool.Exec(ctx, `
		INSERT INTO course_chunks (id, course_id, lesson_number, chunk_index, content, embedding, created_at)
		VALUES ($1, $2, 1, 0, $3, $4, NOW()),
		       ($5, $6, 2, 1, $7, $8, NOW()),
		       ($9, $10, 1, 0, $11, $12, NOW())
	`,
		uuid.New(), alphaID, "alpha chunk one", pgvector.NewVector(axisVector(dim, 1.0)),
		uuid.New(), alphaID, "alpha chunk two", pgvector.NewVector(axisVector(dim, 0.6)),
		uuid.New(), betaID, "beta chunk", pgvector.NewVector(axisVector(dim, 0.2)),
	); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	embedder := &weightedEmbedder{dimension: dim, weights: map[string]float32{
		"ranking query":            0.9,
		"Integration Alpha Course": 1.0,
		"Integration Beta Course":  -1.0,
	}}
	courseStore := store.NewPostgres(pool, embedder, 5)

	t.Run("ranking order", func(t *testing.T) {
		results, err := courseStore.Search(ctx, "ranking query", "", nil, 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(results) < 3 {
			t.Fatalf("expected at least the 3 seeded chunks, got %d", len(results))
		}
		if results[0].Content != "alpha chunk one" {
			t.Fatalf("expected the closest chunk first, got %q", results[0].Content)
		}
		for i := 1; i < len(results); i++ {
			if results[i].Score > results[i-1].Score {
				t.Fatalf("scores not non-increasing at %d: %f > %f", i, results[i].Score, results[i-1].Score)
			}
		}
	})

	t.Run("course filter confinement", func(t *testing.T) {
		results, err := courseStore.Search(ctx, "ranking query", "Integration Alpha Course", nil, 10)
		if err != nil {
			t.Fatalf("search with course filter: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 alpha chunks, got %d", len(results))
		}
		for _, result := range results {
			if result.CourseTitle != "Integration Alpha Course" {
				t.Fatalf("filter leaked chunk from %q", result.CourseTitle)
			}
		}
		if results[0].Lesson == nil || *results[0].Lesson != 1 || results[0].LessonLink != "https://example.com/alpha/1" {
			t.Fatalf("expected lesson 1 with its link first, got %+v", results[0])
		}
	})

	t.Run("lesson filter confinement", func(t *testing.T) {
		results, err := courseStore.Search(ctx, "ranking query", "Integration Alpha Course", lessonPtr(2), 10)
		if err != nil {
			t.Fatalf("search with lesson filter: %v", err)
		}
		if len(results) != 1 || results[0].Content != "alpha chunk two" {
			t.Fatalf("expected only the lesson 2 chunk, got %+v", results)
		}
	})

	t.Run("filter with no indexed match", func(t *testing.T) {
		_, err := courseStore.Search(ctx, "ranking query", "Integration Alpha Course", lessonPtr(99), 10)
		if !errors.Is(err, store.ErrNoMatch) {
			t.Fatalf("expected ErrNoMatch for an unindexed lesson, got %v", err)
		}
	})

	t.Run("outline from catalog", func(t *testing.T) {
		outline, err := courseStore.Outline(ctx, "Integration Alpha Course")
		if err != nil {
			t.Fatalf("outline: %v", err)
		}
		if outline.Title != "Integration Alpha Course" || len(outline.Lessons) != 2 {
			t.Fatalf("unexpected outline: %+v", outline)
		}
		if outline.Lessons[0].Number != 1 || outline.Lessons[0].Title != "One" {
			t.Fatalf("unexpected first lesson: %+v", outline.Lessons[0])
		}
	})
}
