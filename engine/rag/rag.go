// Package rag orchestrates the retrieval-augmented answer pipeline. It
// accepts a user question, embeds it, searches the vector index for
// relevant chunks, renders the QA prompt, and calls the chat model for the
// final answer.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdocs/askdocs/engine/llm"
	"github.com/askdocs/askdocs/engine/semantic"
)

// Searcher abstracts vector search over the index.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
}

// Options configures the query pipeline.
type Options struct {
	TopK          int
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          4,
		SearchTimeout: 5 * time.Second,
	}
}

// Service runs the per-request QA pipeline against a read-only index.
type Service struct {
	embed  llm.Embedder
	gen    llm.Generator
	search Searcher
	opts   Options
	logger *slog.Logger
}

// New creates a Service. The embedder must be the same client
// configuration used during ingestion; a mismatched embedding space
// silently degrades retrieval.
func New(embedder llm.Embedder, generator llm.Generator, search Searcher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	return &Service{
		embed:  embedder,
		gen:    generator,
		search: search,
		opts:   opts,
		logger: logger,
	}
}

// Answer is the structured response for one question.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Source is a retrieved chunk backing the answer.
type Source struct {
	SourcePath string  `json:"source_path"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float32 `json:"score"`
}

// Ask runs the full pipeline for one question. An empty retrieval still
// renders the prompt and calls the model; the prompt instructs it to admit
// not knowing rather than fabricate.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	if question == "" {
		return nil, errors.New("rag: question is empty")
	}
	s.logger.Info("rag query start", "question_len", len(question))

	vecs, err := s.embed.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("rag: embed question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("rag: embed question returned %d vectors", len(vecs))
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	results, err := s.search.Search(searchCtx, vecs[0], s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	s.logger.Info("rag search done", "results", len(results))

	contextParts := make([]string, len(results))
	for i, r := range results {
		contextParts[i] = r.Content
	}
	prompt, err := renderPrompt(contextParts, question)
	if err != nil {
		return nil, fmt.Errorf("rag: render prompt: %w", err)
	}

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rag: generate: %w", err)
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			SourcePath: r.SourcePath,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
		}
	}
	return &Answer{Text: text, Sources: sources}, nil
}
