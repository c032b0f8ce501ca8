// Package domain defines the core data types shared across the ingestion
// and query pipelines.
package domain

// Document is a single source file loaded from the docs directory.
// Immutable after loading.
type Document struct {
	Text       string
	SourcePath string
	Metadata   map[string]string
}

// ID returns the stable document identifier used for chunk point IDs.
func (d Document) ID() string {
	return d.SourcePath
}

// Chunk is a bounded span of a document's text, the unit of retrieval.
// Chunks from one document may overlap by design.
type Chunk struct {
	Text       string
	DocID      string
	SourcePath string
	Index      int // position within the parent document's chunk sequence
	Offset     int // byte offset of the chunk text within the document
}
