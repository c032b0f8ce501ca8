package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/askdocs/askdocs/engine/domain"
	"github.com/askdocs/askdocs/engine/semantic"
	"github.com/askdocs/askdocs/engine/splitter"
)

// --- mocks ---

type fakeSource struct {
	docs []domain.Document
	err  error
}

func (f *fakeSource) Load() ([]domain.Document, error) {
	return f.docs, f.err
}

type fakeEmbedder struct {
	batches [][]string
	dims    int
	err     error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, f.dims)
		vec[0] = float32(len(text))
		out[i] = vec
	}
	return out, nil
}

type fakeIndex struct {
	dims    int
	records []semantic.VectorRecord
	err     error
}

func (f *fakeIndex) EnsureCollection(_ context.Context, dims int) error {
	f.dims = dims
	return f.err
}

func (f *fakeIndex) Upsert(_ context.Context, records []semantic.VectorRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	return nil
}

func newTestSplitter(t *testing.T) *splitter.Splitter {
	t.Helper()
	s, err := splitter.New(40, 10)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// --- tests ---

func TestRun_BuildsIndexFromDocuments(t *testing.T) {
	source := &fakeSource{docs: []domain.Document{
		{Text: "First paragraph about wiring.\n\nSecond paragraph about fuses.", SourcePath: "a.md"},
		{Text: "Short note.", SourcePath: "b.md"},
	}}
	embedder := &fakeEmbedder{dims: 4}
	index := &fakeIndex{}

	stats, err := Run(context.Background(), Deps{
		Source:   source,
		Splitter: newTestSplitter(t),
		Embedder: embedder,
		Index:    index,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Documents != 2 {
		t.Errorf("expected 2 documents, got %d", stats.Documents)
	}
	if stats.Chunks != len(index.records) {
		t.Errorf("stats chunks %d != records %d", stats.Chunks, len(index.records))
	}
	if stats.Dims != 4 || index.dims != 4 {
		t.Errorf("wrong dims: stats=%d index=%d", stats.Dims, index.dims)
	}

	// Every record pairs the chunk text with the vector embedded from it.
	for i, r := range index.records {
		if r.Embedding[0] != float32(len(r.Content)) {
			t.Errorf("record %d pairs chunk %q with the wrong vector", i, r.Content)
		}
		if r.ID == "" || r.DocID == "" {
			t.Errorf("record %d missing identifiers: %+v", i, r)
		}
	}
}

func TestRun_BatchesPreserveOrder(t *testing.T) {
	source := &fakeSource{docs: []domain.Document{
		{Text: "alpha section covers the basics.\n\n" +
			"beta section covers wiring runs.\n\n" +
			"gamma section covers fuse boxes.\n\n" +
			"delta section covers the relays.\n\n" +
			"omega section covers everything.", SourcePath: "a.md"},
	}}
	embedder := &fakeEmbedder{dims: 2}
	index := &fakeIndex{}

	_, err := Run(context.Background(), Deps{
		Source:    source,
		Splitter:  newTestSplitter(t),
		Embedder:  embedder,
		Index:     index,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(embedder.batches) < 2 {
		t.Fatalf("expected multiple batches, got %d", len(embedder.batches))
	}
	for _, batch := range embedder.batches {
		if len(batch) > 2 {
			t.Errorf("batch exceeds size: %d", len(batch))
		}
	}

	// Records must follow chunk order across batch boundaries.
	for i, r := range index.records {
		if r.ChunkIndex != i {
			t.Errorf("record %d has chunk index %d", i, r.ChunkIndex)
		}
	}
}

func TestRun_NoDocumentsFails(t *testing.T) {
	_, err := Run(context.Background(), Deps{
		Source:   &fakeSource{},
		Splitter: newTestSplitter(t),
		Embedder: &fakeEmbedder{dims: 2},
		Index:    &fakeIndex{},
	})
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestRun_EmptyCorpusAllowed(t *testing.T) {
	embedder := &fakeEmbedder{dims: 3}
	index := &fakeIndex{}

	stats, err := Run(context.Background(), Deps{
		Source:     &fakeSource{},
		Splitter:   newTestSplitter(t),
		Embedder:   embedder,
		Index:      index,
		AllowEmpty: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Documents != 0 || stats.Chunks != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
	if index.dims != 3 {
		t.Errorf("collection not created from probe dims: %d", index.dims)
	}
	if len(index.records) != 0 {
		t.Errorf("no records expected, got %d", len(index.records))
	}
}

func TestRun_LoaderErrorFails(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := Run(context.Background(), Deps{
		Source:   &fakeSource{err: boom},
		Splitter: newTestSplitter(t),
		Embedder: &fakeEmbedder{dims: 2},
		Index:    &fakeIndex{},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestRun_EmbedderErrorFails(t *testing.T) {
	boom := errors.New("embed service down")
	index := &fakeIndex{}
	_, err := Run(context.Background(), Deps{
		Source:   &fakeSource{docs: []domain.Document{{Text: "hello world", SourcePath: "a.md"}}},
		Splitter: newTestSplitter(t),
		Embedder: &fakeEmbedder{err: boom},
		Index:    index,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected embedder error, got %v", err)
	}
	if len(index.records) != 0 {
		t.Error("nothing should be indexed after an embed failure")
	}
}

func TestRun_IndexErrorFails(t *testing.T) {
	boom := errors.New("qdrant down")
	_, err := Run(context.Background(), Deps{
		Source:   &fakeSource{docs: []domain.Document{{Text: "hello world", SourcePath: "a.md"}}},
		Splitter: newTestSplitter(t),
		Embedder: &fakeEmbedder{dims: 2},
		Index:    &fakeIndex{err: boom},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected index error, got %v", err)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("docs/a.md", 3)
	b := PointID("docs/a.md", 3)
	if a != b {
		t.Errorf("point IDs differ for same input: %s vs %s", a, b)
	}
	if a == PointID("docs/a.md", 4) {
		t.Error("point IDs collide across chunk indexes")
	}
	if a == PointID("docs/b.md", 3) {
		t.Error("point IDs collide across documents")
	}
}
