package chat

import (
	"errors"

	"github.com/edupipe/course-agent/search"
)

// ErrGeneration marks failures of the external LLM call. The orchestrator
// has no way to satisfy the request without it, so callers see the error
// as-is.
var ErrGeneration = errors.New("llm generation failed")

// Response is the orchestrator's result: the answer text, the distinct
// sources cited, and the session the exchange was recorded under.
type Response struct {
	Answer    string
	Sources   []search.Source
	SessionID string
}
