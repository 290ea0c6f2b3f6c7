// Package knowledge mirrors the course catalog into a Neo4j graph so
// catalog stats can be enriched with structure the vector store does not
// model (lesson layout, courses sharing an instructor).
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Course struct {
	ID         string
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson
}

type Lesson struct {
	Number int
	Title  string
	Link   string
}

// Insight is the graph's view of one course.
type Insight struct {
	LessonCount    int
	RelatedCourses []RelatedCourse
}

// RelatedCourse is another course connected through a shared instructor.
type RelatedCourse struct {
	ID    string
	Title string
}

// SyncCourse upserts the course node and rebuilds its lesson and
// instructor relations.
func SyncCourse(ctx context.Context, driver neo4j.DriverWithContext, course Course) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"id":         course.ID,
		"title":      course.Title,
		"link":       course.Link,
		"instructor": course.Instructor,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (c:Course {id: $id})
			SET c.title = $title,
			    c.link = $link,
			    c.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert course node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (c:Course {id: $id})-[r:TAUGHT_BY]->(i:Instructor)
			DELETE r
			WITH i
			WHERE NOT (i)<-[:TAUGHT_BY]-(:Course)
			DETACH DELETE i
		`, params); err != nil {
			return nil, fmt.Errorf("clear instructor relation: %w", err)
		}

		if course.Instructor != "" {
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {id: $id})
				MERGE (i:Instructor {name: $instructor})
				MERGE (c)-[:TAUGHT_BY]->(i)
			`, params); err != nil {
				return nil, fmt.Errorf("upsert instructor relation: %w", err)
			}
		}

		if _, err := tx.Run(ctx, `
			MATCH (c:Course {id: $id})-[:HAS_LESSON]->(l:Lesson)
			DETACH DELETE l
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing lessons: %w", err)
		}

		for _, lesson := range course.Lessons {
			if _, err := tx.Run(ctx, `
				MATCH (c:Course {id: $id})
				CREATE (l:Lesson {number: $number, title: $lessonTitle, link: $lessonLink})
				CREATE (c)-[:HAS_LESSON]->(l)
			`, map[string]any{
				"id":          course.ID,
				"number":      lesson.Number,
				"lessonTitle": lesson.Title,
				"lessonLink":  lesson.Link,
			}); err != nil {
				return nil, fmt.Errorf("create lesson %d: %w", lesson.Number, err)
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("sync course %s: %w", course.Title, err)
	}

	return nil
}

// CourseInsights returns graph-derived detail for the given course ids.
func CourseInsights(ctx context.Context, driver neo4j.DriverWithContext, courseIDs []string) (map[string]Insight, error) {
	if driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(courseIDs) == 0 {
		return map[string]Insight{}, nil
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (c:Course)
		WHERE c.id IN $ids
		OPTIONAL MATCH (c)-[:HAS_LESSON]->(l:Lesson)
		OPTIONAL MATCH (c)-[:TAUGHT_BY]->(:Instructor)<-[:TAUGHT_BY]-(related:Course)
		WITH c,
		     count(DISTINCT l) AS lessonCount,
		     [r IN collect(DISTINCT related) WHERE r IS NOT NULL AND r.id <> c.id | {id: r.id, title: r.title}] AS relatedCourses
		RETURN c.id AS id, lessonCount, relatedCourses
	`, map[string]any{"ids": courseIDs})
	if err != nil {
		return nil, fmt.Errorf("run course insights query: %w", err)
	}

	insights := make(map[string]Insight, len(courseIDs))
	for result.Next(ctx) {
		record := result.Record()
		idVal, _ := record.Get("id")
		countVal, _ := record.Get("lessonCount")
		relatedVal, _ := record.Get("relatedCourses")

		id, ok := idVal.(string)
		if !ok {
			continue
		}

		var lessonCount int64
		switch v := countVal.(type) {
		case int64:
			lessonCount = v
		case int32:
			lessonCount = int64(v)
		}

		insights[id] = Insight{
			LessonCount:    int(lessonCount),
			RelatedCourses: convertRelated(relatedVal),
		}
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("course insights result error: %w", err)
	}

	return insights, nil
}

// Purge removes every course, lesson, and instructor node.
func Purge(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		"MATCH (c:Course) DETACH DELETE c",
		"MATCH (l:Lesson) DETACH DELETE l",
		"MATCH (i:Instructor) DETACH DELETE i",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}

	return nil
}

func convertRelated(value any) []RelatedCourse {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}

	related := make([]RelatedCourse, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		course := RelatedCourse{}
		if id, ok := entry["id"].(string); ok {
			course.ID = id
		}
		if title, ok := entry["title"].(string); ok {
			course.Title = title
		}
		if course.ID != "" {
			related = append(related, course)
		}
	}
	return related
}
