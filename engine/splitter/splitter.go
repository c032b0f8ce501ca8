// Package splitter partitions documents into overlapping fixed-size chunks.
// It splits recursively on a separator hierarchy (paragraphs, then lines,
// then words, then characters) and merges the pieces back up to the chunk
// size, carrying a configurable overlap between consecutive chunks.
// Splitting is deterministic: the same text and configuration always
// produce the same chunk sequence.
package splitter

import (
	"strings"

	"github.com/askdocs/askdocs/engine/domain"
)

// DefaultSeparators are tried in order; the first one present in the text
// wins. The empty separator splits into individual characters as a last
// resort for pathological inputs.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

const (
	// DefaultChunkSize is the target chunk length in bytes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of bytes carried over between
	// consecutive chunks.
	DefaultChunkOverlap = 200
)

// Splitter splits document text recursively by separator.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a Splitter. Overlap must be smaller than size.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if err := domain.ValidateSplitterConfig(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// SplitDocument splits a document into chunks carrying the parent document
// reference, the chunk's index in the sequence, and its byte offset.
func (s *Splitter) SplitDocument(doc domain.Document) []domain.Chunk {
	pieces := s.SplitText(doc.Text)
	chunks := make([]domain.Chunk, 0, len(pieces))

	// Chunks overlap, so each search resumes just past the previous
	// chunk's start rather than its end.
	searchFrom := 0
	for i, text := range pieces {
		offset := strings.Index(doc.Text[searchFrom:], text)
		if offset >= 0 {
			offset += searchFrom
			searchFrom = offset + 1
		} else {
			offset = searchFrom
		}
		chunks = append(chunks, domain.Chunk{
			Text:       text,
			DocID:      doc.ID(),
			SourcePath: doc.SourcePath,
			Index:      i,
			Offset:     offset,
		})
	}
	return chunks
}

// SplitText splits raw text into pieces of at most chunkSize bytes where
// the separator structure allows it. Empty pieces are dropped.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator that occurs in the text.
	separator := separators[len(separators)-1]
	remaining := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		splits = strings.Split(text, "")
	} else {
		splits = strings.Split(text, separator)
	}

	var final []string
	var good []string
	for _, piece := range splits {
		if len(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		// Piece is still too large: flush what we have, then recurse
		// with the finer separators.
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, piece)
			continue
		}
		final = append(final, s.split(piece, remaining)...)
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge greedily packs small splits into chunks close to chunkSize,
// retaining a tail of at most chunkOverlap bytes between chunks.
func (s *Splitter) merge(splits []string, separator string) []string {
	var docs []string
	var current []string
	total := 0

	for _, piece := range splits {
		withPiece := total + len(piece)
		if len(current) > 0 {
			withPiece += len(separator)
		}

		if withPiece > s.chunkSize && len(current) > 0 {
			if doc := join(current, separator); doc != "" {
				docs = append(docs, doc)
			}
			// Drop from the front until the retained tail fits the
			// overlap budget and leaves room for the next piece.
			for len(current) > 0 && (total > s.chunkOverlap ||
				(total+len(piece)+len(separator) > s.chunkSize && total > 0)) {
				total -= len(current[0])
				if len(current) > 1 {
					total -= len(separator)
				}
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += len(piece)
		if len(current) > 1 {
			total += len(separator)
		}
	}

	if doc := join(current, separator); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func join(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}
