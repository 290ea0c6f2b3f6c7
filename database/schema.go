package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the catalog and content tables used by the course
// store. The catalog keeps one embedded row per course so fuzzy course
// names can be resolved by similarity; content chunks carry their own
// embeddings for semantic search.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS courses (
			id UUID PRIMARY KEY,
			title TEXT UNIQUE NOT NULL,
			course_link TEXT,
			instructor TEXT,
			lessons JSONB NOT NULL DEFAULT '[]',
			sha256 TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS course_chunks (
			id UUID PRIMARY KEY,
			course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
			lesson_number INT,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(course_id, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_course_chunks_course ON course_chunks(course_id)",
		"CREATE INDEX IF NOT EXISTS idx_course_chunks_lesson ON course_chunks(course_id, lesson_number)",
		"CREATE INDEX IF NOT EXISTS idx_course_chunks_embedding ON course_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
