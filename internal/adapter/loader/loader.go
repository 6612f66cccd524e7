// Package loader extracts plain text from uploaded files and splits it
// into chunk-sized spans.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"support-assistant/internal/domain"
)

// FileLoader dispatches on the filename extension and runs the
// extracted text through the splitter.
type FileLoader struct {
	splitter domain.Splitter
}

// NewFileLoader creates a loader backed by the given splitter.
func NewFileLoader(splitter domain.Splitter) *FileLoader {
	return &FileLoader{splitter: splitter}
}

// Load extracts text from data and returns ordered chunk spans.
func (l *FileLoader) Load(ctx context.Context, filename string, data []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, err = extractPDF(data)
	case "txt":
		text = string(data)
	case "csv":
		text, err = extractCSV(data)
	case "html", "htm":
		text, err = extractHTML(data)
	case "docx":
		text, err = extractDocx(data)
	default:
		return nil, fmt.Errorf("%w: .%s", domain.ErrUnsupportedExtension, ext)
	}
	if err != nil {
		return nil, err
	}

	return l.splitter.Split(text), nil
}

var _ domain.DocumentLoader = (*FileLoader)(nil)
