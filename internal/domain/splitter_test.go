package domain_test

import (
	"strings"
	"testing"

	"support-assistant/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestSplitter_EmptyInput(t *testing.T) {
	s := domain.NewSplitter(500, 100)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\n  "))
}

func TestSplitter_ShortTextSingleChunk(t *testing.T) {
	s := domain.NewSplitter(500, 100)
	chunks := s.Split("A short paragraph that fits in one chunk.")
	assert.Len(t, chunks, 1)
	assert.Equal(t, "A short paragraph that fits in one chunk.", chunks[0])
}

func TestSplitter_PrefersParagraphBoundaries(t *testing.T) {
	s := domain.NewSplitter(50, 0)
	text := "First paragraph with some words.\n\nSecond paragraph with more words.\n\nThird paragraph here."
	chunks := s.Split(text)

	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.NotContains(t, chunk, "\n\n")
	}
}

func TestSplitter_ChunksStayNearTargetSize(t *testing.T) {
	s := domain.NewSplitter(100, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	chunks := s.Split(text)

	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		// A chunk may exceed the target by at most one accumulated piece.
		assert.LessOrEqual(t, len(chunk), 160, "chunk too large: %q", chunk)
	}
}

func TestSplitter_OverlapCarriesTrailingText(t *testing.T) {
	s := domain.NewSplitter(100, 40)
	text := strings.Repeat("alpha beta gamma delta epsilon zeta. ", 20)
	chunks := s.Split(text)

	assert.Greater(t, len(chunks), 1)
	// The head of each later chunk repeats words from the end of the
	// previous one.
	for i := 1; i < len(chunks); i++ {
		headWord := strings.Fields(chunks[i])[0]
		assert.Contains(t, chunks[i-1], headWord)
	}
}

func TestSplitter_HardCutWithoutSeparators(t *testing.T) {
	s := domain.NewSplitter(50, 0)
	text := strings.Repeat("x", 200)
	chunks := s.Split(text)

	assert.GreaterOrEqual(t, len(chunks), 4)
	joined := strings.Join(chunks, "")
	assert.Contains(t, joined, strings.Repeat("x", 50))
}

func TestSplitter_NormalizesLineEndings(t *testing.T) {
	s := domain.NewSplitter(500, 100)
	chunks := s.Split("line one\r\nline two\rline three")
	assert.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0], "\r")
}

func TestSplitter_InvalidConfigFallsBackToDefaults(t *testing.T) {
	s := domain.NewSplitter(0, -1)
	assert.Equal(t, domain.SplitterVersionV1, s.Version())
	chunks := s.Split("some text")
	assert.Len(t, chunks, 1)
}
