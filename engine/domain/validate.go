package domain

import "fmt"

// ValidateSplitterConfig checks chunking parameters before ingestion.
// Overlap must satisfy 0 <= overlap < size.
func ValidateSplitterConfig(chunkSize, chunkOverlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("validate: chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return fmt.Errorf("validate: chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return fmt.Errorf("validate: chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}
	return nil
}

// ValidateDocument checks a loaded document before splitting.
func ValidateDocument(doc Document) error {
	if doc.SourcePath == "" {
		return fmt.Errorf("validate: document source path is empty")
	}
	if doc.Text == "" {
		return fmt.Errorf("validate: document %s has no content", doc.SourcePath)
	}
	return nil
}
