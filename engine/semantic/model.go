package semantic

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Content    string  `json:"content"`
	DocID      string  `json:"doc_id"`
	SourcePath string  `json:"source_path"`
	ChunkIndex int     `json:"chunk_index"`
}

// VectorRecord is a single (vector, chunk) pair to store. The vector and
// the chunk payload always travel together; they are never reordered
// independently.
type VectorRecord struct {
	ID         string
	Embedding  []float32
	Content    string
	DocID      string
	SourcePath string
	ChunkIndex int
	Offset     int
}
