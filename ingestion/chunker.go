// Package ingestion handles document parsing, chunking, and persistence to
// the vector store and course graph.
package ingestion

import "iter"

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

// Chunk is a contiguous piece of a document's text. Start is the rune
// offset into the source text, so chunk i+1 always begins Overlap runes
// before chunk i ends.
type Chunk struct {
	Index int
	Start int
	Text  string
}

// Chunker splits text into overlapping windows of at most Size runes.
// Cuts prefer a paragraph break, then a sentence end, inside the window;
// when neither exists past the overlap watermark the window is cut hard at
// Size. The final chunk is the remaining tail, however short.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= size {
		overlap = size - 1
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split lazily yields the chunks of text. The sequence is restartable:
// ranging over it twice yields identical chunks.
func (c Chunker) Split(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		size := c.Size
		overlap := c.Overlap
		if size <= 0 || overlap < 0 || overlap >= size {
			normalized := NewChunker(size, overlap)
			size, overlap = normalized.Size, normalized.Overlap
		}

		runes := []rune(text)
		if len(runes) == 0 {
			return
		}

		start := 0
		index := 0
		for {
			if len(runes)-start <= size {
				yield(Chunk{Index: index, Start: start, Text: string(runes[start:])})
				return
			}

			end := start + size
			// A cut before start+overlap+1 would make the next chunk begin
			// at or before this one, so boundaries are only honored past
			// that watermark.
			if cut := boundaryCut(runes, start+overlap+1, end); cut > 0 {
				end = cut
			}

			if !yield(Chunk{Index: index, Start: start, Text: string(runes[start:end])}) {
				return
			}

			start = end - overlap
			index++
		}
	}
}

// Chunks collects the full split into a slice.
func (c Chunker) Chunks(text string) []Chunk {
	var chunks []Chunk
	for chunk := range c.Split(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// boundaryCut returns the largest cut position in [min, max) that lands on
// a paragraph break or sentence end, or -1 when the window has neither.
func boundaryCut(runes []rune, min, max int) int {
	if min < 2 {
		min = 2
	}

	for cut := max - 1; cut >= min; cut-- {
		if runes[cut-1] == '\n' && runes[cut-2] == '\n' {
			return cut
		}
	}

	for cut := max - 1; cut >= min; cut-- {
		if isSpace(runes[cut-1]) && isSentenceEnd(runes[cut-2]) {
			return cut
		}
	}

	return -1
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
