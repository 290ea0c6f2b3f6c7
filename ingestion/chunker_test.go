package ingestion_test

import (
	"strings"
	"testing"

	"github.com/edupipe/course-agent/ingestion"
)

func TestSplitHardCutFallback(t *testing.T) {
	chunker := ingestion.NewChunker(5, 2)
	chunks := chunker.Chunks("0123456789")

	want := []string{"01234", "34567", "6789"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Text != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], chunk.Text)
		}
		if chunk.Index != i {
			t.Fatalf("chunk %d: expected index %d, got %d", i, i, chunk.Index)
		}
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon zeta eta theta."
	chunker := ingestion.NewChunker(30, 5)
	chunks := chunker.Chunks(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "Alpha beta gamma. " {
		t.Fatalf("expected first chunk to end at the sentence boundary, got %q", chunks[0].Text)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph is a fair bit longer and keeps going."
	chunker := ingestion.NewChunker(40, 5)
	chunks := chunker.Chunks(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Fatalf("expected first chunk to end at the paragraph break, got %q", chunks[0].Text)
	}
}

func TestSplitReconstructsText(t *testing.T) {
	texts := []string{
		"0123456789",
		"Alpha beta gamma. Delta epsilon zeta eta theta.",
		"One sentence. Another sentence!\n\nA new paragraph follows with plenty of text. And more? Yes, more. " +
			strings.Repeat("Filler sentence to push past several windows. ", 20),
	}

	for _, text := range texts {
		chunker := ingestion.NewChunker(37, 9)
		chunks := chunker.Chunks(text)

		var sb strings.Builder
		for i, chunk := range chunks {
			runes := []rune(chunk.Text)
			if i == 0 {
				sb.WriteString(chunk.Text)
				continue
			}
			sb.WriteString(string(runes[chunker.Overlap:]))
		}

		if sb.String() != text {
			t.Fatalf("reconstruction mismatch for %q...", text[:10])
		}
	}
}

func TestSplitInvariants(t *testing.T) {
	text := strings.Repeat("Some sentences vary in length. A short one. A rather longer one follows it here. ", 12)

	for _, tc := range []struct{ size, overlap int }{
		{50, 10},
		{80, 25},
		{33, 1},
		{100, 0},
	} {
		chunker := ingestion.NewChunker(tc.size, tc.overlap)
		chunks := chunker.Chunks(text)

		if len(chunks) == 0 {
			t.Fatalf("size=%d overlap=%d: expected chunks", tc.size, tc.overlap)
		}

		for i, chunk := range chunks {
			runes := []rune(chunk.Text)
			if len(runes) > tc.size {
				t.Fatalf("size=%d overlap=%d: chunk %d has %d runes", tc.size, tc.overlap, i, len(runes))
			}
			if i == 0 {
				if chunk.Start != 0 {
					t.Fatalf("first chunk starts at %d", chunk.Start)
				}
				continue
			}
			prev := chunks[i-1]
			prevEnd := prev.Start + len([]rune(prev.Text))
			if chunk.Start != prevEnd-tc.overlap {
				t.Fatalf("size=%d overlap=%d: chunk %d starts at %d, expected %d", tc.size, tc.overlap, i, chunk.Start, prevEnd-tc.overlap)
			}
		}
	}
}

func TestSplitEmptyText(t *testing.T) {
	chunker := ingestion.NewChunker(100, 20)
	if chunks := chunker.Chunks(""); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestSplitShortText(t *testing.T) {
	chunker := ingestion.NewChunker(100, 20)
	chunks := chunker.Chunks("short text")

	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short text" {
		t.Fatalf("expected the full text, got %q", chunks[0].Text)
	}
}

func TestSplitIsRestartable(t *testing.T) {
	text := strings.Repeat("A sentence of reasonable length goes here. ", 10)
	chunker := ingestion.NewChunker(64, 16)

	seq := chunker.Split(text)
	first := make([]ingestion.Chunk, 0)
	for chunk := range seq {
		first = append(first, chunk)
	}
	second := make([]ingestion.Chunk, 0)
	for chunk := range seq {
		second = append(second, chunk)
	}

	if len(first) != len(second) {
		t.Fatalf("expected identical passes, got %d and %d chunks", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between passes", i)
		}
	}
}
