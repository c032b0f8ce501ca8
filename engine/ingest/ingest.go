// Package ingest builds the vector index at process start-up. It runs the
// corpus through load, split, embed, and index stages exactly once; the
// resulting collection is treated as read-only for the rest of the process
// lifetime.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/askdocs/askdocs/engine/domain"
	"github.com/askdocs/askdocs/engine/llm"
	"github.com/askdocs/askdocs/engine/semantic"
	"github.com/askdocs/askdocs/pkg/fn"
	"github.com/google/uuid"
)

// DefaultBatchSize is the maximum number of chunks per embedding request.
const DefaultBatchSize = 64

// ErrNoDocuments is returned when the docs directory yields no matching
// files. The service must not silently start over an empty corpus.
var ErrNoDocuments = errors.New("ingest: no documents matched")

// DocumentSource loads the corpus. Implemented by loader.Loader.
type DocumentSource interface {
	Load() ([]domain.Document, error)
}

// ChunkSplitter splits a document into chunks. Implemented by
// splitter.Splitter.
type ChunkSplitter interface {
	SplitDocument(doc domain.Document) []domain.Chunk
}

// Indexer receives the (vector, chunk) batch. Implemented by
// semantic.VectorStore.
type Indexer interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Deps holds the pipeline collaborators.
type Deps struct {
	Source   DocumentSource
	Splitter ChunkSplitter
	Embedder llm.Embedder
	Index    Indexer
	// AllowEmpty lets the service come up over an empty corpus. This is
	// an explicit operator acknowledgment, never a default.
	AllowEmpty bool
	BatchSize  int
	Logger     *slog.Logger
}

// Stats summarizes a completed ingestion.
type Stats struct {
	Documents int
	Chunks    int
	Dims      int
}

type embedded struct {
	chunks  []domain.Chunk
	vectors [][]float32
}

// Run executes the full ingestion pipeline. Any stage failure aborts the
// whole run; a partial index is never left behind as a success.
func Run(ctx context.Context, deps Deps) (Stats, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}

	pipeline := fn.Then(
		fn.Then(
			fn.TracedStage("ingest.load", loadStage(deps, log)),
			fn.TracedStage("ingest.split", splitStage(deps, log)),
		),
		fn.Then(
			fn.TracedStage("ingest.embed", embedStage(deps, log)),
			fn.TracedStage("ingest.index", indexStage(deps, log)),
		),
	)

	result := pipeline(ctx, struct{}{})
	stats, err := result.Unwrap()
	if errors.Is(err, ErrNoDocuments) && deps.AllowEmpty {
		return bootstrapEmpty(ctx, deps, log)
	}
	return stats, err
}

func loadStage(deps Deps, log *slog.Logger) fn.Stage[struct{}, []domain.Document] {
	return func(_ context.Context, _ struct{}) fn.Result[[]domain.Document] {
		docs, err := deps.Source.Load()
		if err != nil {
			return fn.Err[[]domain.Document](err)
		}
		if len(docs) == 0 {
			return fn.Err[[]domain.Document](ErrNoDocuments)
		}
		log.Info("ingest: documents loaded", "count", len(docs))
		return fn.Ok(docs)
	}
}

func splitStage(deps Deps, log *slog.Logger) fn.Stage[[]domain.Document, []domain.Chunk] {
	return func(_ context.Context, docs []domain.Document) fn.Result[[]domain.Chunk] {
		var chunks []domain.Chunk
		for _, doc := range docs {
			if err := domain.ValidateDocument(doc); err != nil {
				return fn.Err[[]domain.Chunk](err)
			}
			split := deps.Splitter.SplitDocument(doc)
			if len(split) == 0 {
				return fn.Err[[]domain.Chunk](fmt.Errorf("ingest: document %s produced no chunks", doc.SourcePath))
			}
			chunks = append(chunks, split...)
		}
		log.Info("ingest: documents split", "chunks", len(chunks))
		return fn.Ok(chunks)
	}
}

func embedStage(deps Deps, log *slog.Logger) fn.Stage[[]domain.Chunk, embedded] {
	return func(ctx context.Context, chunks []domain.Chunk) fn.Result[embedded] {
		vectors := make([][]float32, 0, len(chunks))
		for _, batch := range fn.Chunk(chunks, deps.BatchSize) {
			texts := fn.Map(batch, func(c domain.Chunk) string { return c.Text })
			vecs, err := deps.Embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fn.Err[embedded](err)
			}
			if len(vecs) != len(batch) {
				return fn.Err[embedded](fmt.Errorf("ingest: embedder returned %d vectors for %d chunks", len(vecs), len(batch)))
			}
			vectors = append(vectors, vecs...)
		}

		dims := 0
		for i, v := range vectors {
			if i == 0 {
				dims = len(v)
			} else if len(v) != dims {
				return fn.Err[embedded](fmt.Errorf("ingest: inconsistent vector dims: %d vs %d", len(v), dims))
			}
		}
		log.Info("ingest: chunks embedded", "vectors", len(vectors), "dims", dims)
		return fn.Ok(embedded{chunks: chunks, vectors: vectors})
	}
}

func indexStage(deps Deps, log *slog.Logger) fn.Stage[embedded, Stats] {
	return func(ctx context.Context, e embedded) fn.Result[Stats] {
		dims := len(e.vectors[0])
		if err := deps.Index.EnsureCollection(ctx, dims); err != nil {
			return fn.Err[Stats](err)
		}

		records := make([]semantic.VectorRecord, len(e.chunks))
		for i, chunk := range e.chunks {
			records[i] = semantic.VectorRecord{
				ID:         PointID(chunk.DocID, chunk.Index),
				Embedding:  e.vectors[i],
				Content:    chunk.Text,
				DocID:      chunk.DocID,
				SourcePath: chunk.SourcePath,
				ChunkIndex: chunk.Index,
				Offset:     chunk.Offset,
			}
		}
		if err := deps.Index.Upsert(ctx, records); err != nil {
			return fn.Err[Stats](err)
		}

		docs := make(map[string]struct{}, len(e.chunks))
		for _, c := range e.chunks {
			docs[c.DocID] = struct{}{}
		}
		stats := Stats{Documents: len(docs), Chunks: len(e.chunks), Dims: dims}
		log.Info("ingest: index built", "documents", stats.Documents, "chunks", stats.Chunks, "dims", stats.Dims)
		return fn.Ok(stats)
	}
}

// bootstrapEmpty creates the collection for an acknowledged empty corpus.
// A single probe embedding establishes the vector dimensions so query-time
// searches still work.
func bootstrapEmpty(ctx context.Context, deps Deps, log *slog.Logger) (Stats, error) {
	vecs, err := deps.Embedder.EmbedBatch(ctx, []string{"dimension probe"})
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: probe embedding for empty corpus: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return Stats{}, errors.New("ingest: probe embedding returned no vector")
	}
	dims := len(vecs[0])
	if err := deps.Index.EnsureCollection(ctx, dims); err != nil {
		return Stats{}, err
	}
	log.Warn("ingest: starting with empty index", "dims", dims)
	return Stats{Dims: dims}, nil
}

// PointID derives a deterministic point UUID from a document ID and chunk
// index, so re-ingesting the same corpus overwrites rather than duplicates.
func PointID(docID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", docID, chunkIndex))).String()
}
