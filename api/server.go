// Package api exposes the chat and catalog workflows over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/edupipe/course-agent/chat"
	"github.com/edupipe/course-agent/knowledge"
	"github.com/edupipe/course-agent/store"
)

// Answerer handles one user query against a session.
type Answerer interface {
	Answer(ctx context.Context, question, sessionID string) (chat.Response, error)
}

// Catalog reports what is indexed.
type Catalog interface {
	Stats(ctx context.Context) (store.Stats, error)
}

type Server struct {
	chat    Answerer
	catalog Catalog
	graph   neo4j.DriverWithContext
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer    string       `json:"answer"`
	Sources   []sourceInfo `json:"sources"`
	SessionID string       `json:"session_id"`
}

type sourceInfo struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

type coursesResponse struct {
	TotalCourses int          `json:"total_courses"`
	Courses      []courseInfo `json:"courses"`
}

type courseInfo struct {
	Title          string   `json:"title"`
	Instructor     string   `json:"instructor,omitempty"`
	LessonCount    int      `json:"lesson_count"`
	ChunkCount     int      `json:"chunk_count"`
	RelatedCourses []string `json:"related_courses,omitempty"`
}

// New constructs a Server over already-connected collaborators. The graph
// driver may be nil; catalog responses then omit graph-derived detail.
func New(answerer Answerer, catalog Catalog, graph neo4j.DriverWithContext, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{chat: answerer, catalog: catalog, graph: graph, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/courses", s.handleCourses)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}

	resp, err := s.chat.Answer(r.Context(), req.Query, req.SessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrGeneration) {
			status = http.StatusBadGateway
		}
		s.writeError(w, status, fmt.Errorf("answer query: %w", err))
		return
	}

	sources := make([]sourceInfo, len(resp.Sources))
	for i, source := range resp.Sources {
		sources[i] = sourceInfo{Label: source.Label, Link: source.Link}
	}

	s.writeJSON(w, http.StatusOK, queryResponse{
		Answer:    resp.Answer,
		Sources:   sources,
		SessionID: resp.SessionID,
	})
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx := r.Context()

	stats, err := s.catalog.Stats(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("catalog stats: %w", err))
		return
	}

	insights := map[string]knowledge.Insight{}
	if s.graph != nil && len(stats.Courses) > 0 {
		ids := make([]string, len(stats.Courses))
		for i, course := range stats.Courses {
			ids[i] = course.ID
		}
		insightMap, insightErr := knowledge.CourseInsights(ctx, s.graph, ids)
		if insightErr != nil {
			s.logger.Printf("course insights error: %v", insightErr)
		} else {
			insights = insightMap
		}
	}

	resp := coursesResponse{TotalCourses: stats.CourseCount, Courses: make([]courseInfo, len(stats.Courses))}
	for i, course := range stats.Courses {
		info := courseInfo{
			Title:       course.Title,
			Instructor:  course.Instructor,
			LessonCount: course.LessonCount,
			ChunkCount:  course.ChunkCount,
		}
		if insight, ok := insights[course.ID]; ok {
			if insight.LessonCount > 0 {
				info.LessonCount = insight.LessonCount
			}
			for _, related := range insight.RelatedCourses {
				info.RelatedCourses = append(info.RelatedCourses, related.Title)
			}
		}
		resp.Courses[i] = info
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
