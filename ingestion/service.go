package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pgvector/pgvector-go"

	"github.com/edupipe/course-agent/database"
	"github.com/edupipe/course-agent/embeddings"
	"github.com/edupipe/course-agent/knowledge"
	"github.com/edupipe/course-agent/store"
)

type Service struct {
	pool      *pgxpool.Pool
	driver    neo4j.DriverWithContext
	embedder  embeddings.Embedder
	chunker   Chunker
	logger    *log.Logger
	dimension int
}

// Report summarizes one ingestion run.
type Report struct {
	Courses int
	Chunks  int
	Skipped int
}

func NewService(pool *pgxpool.Pool, driver neo4j.DriverWithContext, embedder embeddings.Embedder, chunker Chunker, logger *log.Logger, dimension int) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		pool:      pool,
		driver:    driver,
		embedder:  embedder,
		chunker:   chunker,
		logger:    logger,
		dimension: dimension,
	}
}

// IngestDirectory walks dir and ingests every supported course document.
// Malformed documents are logged and skipped; the rest of the run
// continues.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (Report, error) {
	if s.embedder == nil {
		return Report{}, fmt.Errorf("embedder not configured")
	}
	if err := database.EnsureSchema(ctx, s.pool, s.dimension); err != nil {
		return Report{}, fmt.Errorf("ensure schema: %w", err)
	}

	if _, err := os.Stat(dir); err != nil {
		return Report{}, fmt.Errorf("docs directory: %w", err)
	}

	entries := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(d.Name()) != FormatUnknown {
			entries = append(entries, path)
		}
		return nil
	}); err != nil {
		return Report{}, fmt.Errorf("walk docs directory: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Printf("no course documents found in %s", dir)
		return Report{}, nil
	}

	var report Report
	for _, path := range entries {
		chunks, err := s.ingestFile(ctx, path)
		if err != nil {
			s.logger.Printf("ingest failed for %s: %v", path, err)
			report.Skipped++
			continue
		}
		report.Courses++
		report.Chunks += chunks
	}

	return report, nil
}

func (s *Service) ingestFile(ctx context.Context, path string) (chunkCount int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	course, err := ParseCourse(path, data)
	if err != nil {
		return 0, fmt.Errorf("parse course: %w", err)
	}

	hash := sha256.Sum256(data)
	hashHex := hex.EncodeToString(hash[:])

	indexed := s.indexableChunks(course)
	if len(indexed) == 0 {
		s.logger.Printf("skip empty document %s", path)
		return 0, nil
	}

	texts := make([]string, len(indexed))
	for i, chunk := range indexed {
		texts[i] = chunk.embedText
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(indexed) {
		return 0, fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(indexed), len(vectors))
	}

	catalogVec, err := s.catalogEmbedding(ctx, course)
	if err != nil {
		return 0, err
	}

	lessons := make([]store.LessonInfo, 0, len(course.Lessons))
	for _, lesson := range course.Lessons {
		lessons = append(lessons, store.LessonInfo{Number: lesson.Number, Title: lesson.Title, Link: lesson.Link})
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return 0, fmt.Errorf("encode lessons: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Printf("rollback error: %v", rbErr)
			}
		}
	}()

	courseID, changed, err := s.upsertCourse(ctx, tx, course, hashHex, lessonsJSON, catalogVec)
	if err != nil {
		return 0, err
	}

	if !changed {
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return 0, fmt.Errorf("commit transaction: %w", commitErr)
		}
		s.logger.Printf("no updates required for %s", course.Title)
		return 0, nil
	}

	if _, err = tx.Exec(ctx, "DELETE FROM course_chunks WHERE course_id = $1", courseID); err != nil {
		return 0, fmt.Errorf("clear existing chunks: %w", err)
	}

	for idx, chunk := range indexed {
		if _, err = tx.Exec(ctx, `
			INSERT INTO course_chunks (id, course_id, lesson_number, chunk_index, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, uuid.New(), courseID, chunk.lesson, idx, chunk.embedText, pgvector.NewVector(vectors[idx])); err != nil {
			return 0, fmt.Errorf("insert chunk %d: %w", idx, err)
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return 0, fmt.Errorf("commit transaction: %w", commitErr)
	}

	if s.driver != nil {
		node := knowledge.Course{
			ID:         courseID.String(),
			Title:      course.Title,
			Link:       course.Link,
			Instructor: course.Instructor,
		}
		for _, lesson := range course.Lessons {
			node.Lessons = append(node.Lessons, knowledge.Lesson{Number: lesson.Number, Title: lesson.Title, Link: lesson.Link})
		}
		if err := knowledge.SyncCourse(ctx, s.driver, node); err != nil {
			return 0, fmt.Errorf("sync course graph: %w", err)
		}
	}

	s.logger.Printf("ingested %s (%d chunks)", course.Title, len(indexed))
	return len(indexed), nil
}

type indexedChunk struct {
	lesson    *int
	embedText string
}

// indexableChunks splits every lesson and prefixes each chunk with its
// course and lesson so retrieval stays meaningful without surrounding
// context.
func (s *Service) indexableChunks(course *Course) []indexedChunk {
	var chunks []indexedChunk
	for _, lesson := range course.Lessons {
		for chunk := range s.chunker.Split(lesson.Text) {
			number := lesson.Number
			chunks = append(chunks, indexedChunk{
				lesson:    &number,
				embedText: fmt.Sprintf("Course %s Lesson %d content: %s", course.Title, lesson.Number, chunk.Text),
			})
		}
	}
	return chunks
}

func (s *Service) catalogEmbedding(ctx context.Context, course *Course) ([]float32, error) {
	text := course.Title
	if course.Instructor != "" {
		text += " by " + course.Instructor
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed course title: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return vectors[0], nil
}

func (s *Service) upsertCourse(ctx context.Context, tx pgx.Tx, course *Course, sha string, lessonsJSON []byte, vec []float32) (uuid.UUID, bool, error) {
	var (
		courseID     uuid.UUID
		existingHash string
	)

	err := tx.QueryRow(ctx, "SELECT id, sha256 FROM courses WHERE title = $1", course.Title).Scan(&courseID, &existingHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			newID := uuid.New()
			_, execErr := tx.Exec(ctx, `
				INSERT INTO courses (id, title, course_link, instructor, lessons, sha256, embedding, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			`, newID, course.Title, course.Link, course.Instructor, lessonsJSON, sha, pgvector.NewVector(vec))
			if execErr != nil {
				return uuid.Nil, false, fmt.Errorf("insert course: %w", execErr)
			}
			return newID, true, nil
		}
		return uuid.Nil, false, fmt.Errorf("query course: %w", err)
	}

	if existingHash == sha {
		return courseID, false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE courses
		SET course_link = $2,
		    instructor = $3,
		    lessons = $4,
		    sha256 = $5,
		    embedding = $6,
		    updated_at = NOW()
		WHERE id = $1
	`, courseID, course.Link, course.Instructor, lessonsJSON, sha, pgvector.NewVector(vec)); err != nil {
		return uuid.Nil, false, fmt.Errorf("update course: %w", err)
	}

	return courseID, true, nil
}
