package domain

import "strings"

// SplitterVersion identifies the splitting algorithm used for a
// document's chunks so future upgrades remain traceable.
type SplitterVersion string

const (
	// SplitterVersionV1 is the recursive character splitter.
	SplitterVersionV1 SplitterVersion = "v1"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is how many trailing characters of one chunk
	// reappear at the head of the next, preserving local context.
	DefaultChunkOverlap = 100
)

// Splitter splits extracted document text into chunk-sized spans.
type Splitter interface {
	Split(text string) []string
	Version() SplitterVersion
}

type recursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates the default recursive character splitter. It
// prefers paragraph boundaries, then line breaks, then sentence ends,
// then word boundaries, falling back to a hard cut.
func NewSplitter(chunkSize, chunkOverlap int) Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &recursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", ". ", " "},
	}
}

func (s *recursiveSplitter) Version() SplitterVersion {
	return SplitterVersionV1
}

func (s *recursiveSplitter) Split(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return nil
	}

	pieces := s.split(normalized, s.separators)

	// Re-accumulate pieces into chunks near the target size with overlap.
	var chunks []string
	var current strings.Builder
	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+len(piece)+1 > s.chunkSize {
			chunk := strings.TrimSpace(current.String())
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			tail := overlapTail(chunk, s.chunkOverlap)
			current.Reset()
			if tail != "" {
				current.WriteString(tail)
				current.WriteString(" ")
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(piece)
	}
	if last := strings.TrimSpace(current.String()); last != "" {
		chunks = append(chunks, last)
	}
	return chunks
}

func (s *recursiveSplitter) split(text string, separators []string) []string {
	if len(text) <= s.chunkSize {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}
	if len(separators) == 0 {
		// Hard cut when no separator applies.
		var parts []string
		for len(text) > s.chunkSize {
			parts = append(parts, text[:s.chunkSize])
			text = text[s.chunkSize:]
		}
		if text != "" {
			parts = append(parts, text)
		}
		return parts
	}

	sep := separators[0]
	segments := strings.Split(text, sep)
	if len(segments) == 1 {
		return s.split(text, separators[1:])
	}

	var parts []string
	for _, segment := range segments {
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > s.chunkSize {
			parts = append(parts, s.split(trimmed, separators[1:])...)
		} else {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// overlapTail returns the last n characters of chunk cut at a word
// boundary where possible.
func overlapTail(chunk string, n int) string {
	if n <= 0 || len(chunk) <= n {
		return ""
	}
	tail := chunk[len(chunk)-n:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx+1 < len(tail) {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
