package splitter

import (
	"strings"
	"testing"

	"github.com/askdocs/askdocs/engine/domain"
)

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Error("expected error for zero chunk size")
	}
	if _, err := New(100, 100); err == nil {
		t.Error("expected error for overlap >= size")
	}
	if _, err := New(100, -1); err == nil {
		t.Error("expected error for negative overlap")
	}
}

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	s, err := New(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	text := "The capital of Test-Land is Exampleville."
	pieces := s.SplitText(text)
	if len(pieces) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(pieces), pieces)
	}
	if pieces[0] != text {
		t.Errorf("chunk text changed: %q", pieces[0])
	}
}

func TestSplitText_Deterministic(t *testing.T) {
	s, err := New(50, 10)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("one two three four five six seven.\n\n", 20)

	first := s.SplitText(text)
	second := s.SplitText(text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestSplitText_RespectsChunkSize(t *testing.T) {
	s, err := New(40, 10)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("alpha beta gamma delta epsilon ", 30)
	for i, piece := range s.SplitText(text) {
		if len(piece) > 40 {
			t.Errorf("chunk %d exceeds size: %d bytes", i, len(piece))
		}
	}
}

func TestSplitText_OverlapCarriesContent(t *testing.T) {
	s, err := New(30, 15)
	if err != nil {
		t.Fatal(err)
	}
	text := "aa bb cc dd ee ff gg hh ii jj kk ll mm nn oo pp"
	pieces := s.SplitText(text)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(pieces))
	}
	// Consecutive chunks share at least one word from the overlap window.
	for i := 1; i < len(pieces); i++ {
		prev := strings.Fields(pieces[i-1])
		tail := prev[len(prev)-1]
		if !strings.Contains(pieces[i], tail) {
			t.Errorf("chunk %d does not carry overlap from chunk %d: %q / %q", i, i-1, pieces[i-1], pieces[i])
		}
	}
}

func TestSplitDocument_ChunkFieldsAndOffsets(t *testing.T) {
	s, err := New(40, 10)
	if err != nil {
		t.Fatal(err)
	}
	doc := domain.Document{
		Text:       "First paragraph about wiring.\n\nSecond paragraph about fuses.\n\nThird paragraph about relays.",
		SourcePath: "guide.md",
	}
	chunks := s.SplitDocument(doc)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	lastOffset := -1
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.DocID != "guide.md" || c.SourcePath != "guide.md" {
			t.Errorf("chunk %d has wrong parent refs: %+v", i, c)
		}
		if c.Offset <= lastOffset {
			t.Errorf("chunk %d offset %d not increasing past %d", i, c.Offset, lastOffset)
		}
		if got := doc.Text[c.Offset : c.Offset+len(c.Text)]; got != c.Text {
			t.Errorf("chunk %d offset %d does not point at chunk text", i, c.Offset)
		}
		lastOffset = c.Offset
	}
}

func TestSplitText_DropsEmptyPieces(t *testing.T) {
	s, err := New(20, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i, piece := range s.SplitText("a\n\n\n\nb\n\n\n\nc") {
		if strings.TrimSpace(piece) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}
