package domain

import "context"

// DocumentLoader extracts plain text from an uploaded file and splits
// it into chunk-sized spans. The returned slice preserves document
// order; an empty slice means the file held no extractable text.
type DocumentLoader interface {
	Load(ctx context.Context, filename string, data []byte) ([]string, error)
}
