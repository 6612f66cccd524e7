package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ScoredItem is a single extracted signal with a confidence in [0,1].
type ScoredItem struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ContextSummary is the compact structured digest of prior dialogue
// turns. Ephemeral: regenerated per turn, never persisted. Unknown
// fields stay empty, never omitted, so downstream consumers can rely
// on the shape.
type ContextSummary struct {
	Intent        ScoredItem   `json:"intent"`
	Topics        []ScoredItem `json:"topics"`
	Entities      []ScoredItem `json:"entities"`
	Preferences   []ScoredItem `json:"preferences"`
	Constraints   []ScoredItem `json:"constraints"`
	OpenQuestions []ScoredItem `json:"open_questions"`
	Language      string       `json:"language"`
}

// ParseContextSummary decodes and validates LLM output against the
// fixed schema. The generator is non-deterministic, so a successful
// JSON parse alone is not trusted: confidences must be in range and
// the language tag present. A validation failure is a typed error the
// caller turns into a degraded fallback, never a silent pass-through.
func ParseContextSummary(raw string) (*ContextSummary, error) {
	trimmed := strings.TrimSpace(raw)
	// Models occasionally wrap JSON in a markdown fence.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return nil, fmt.Errorf("empty summary output")
	}

	var summary ContextSummary
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to parse context summary: %w", err)
	}

	if err := summary.validate(); err != nil {
		return nil, fmt.Errorf("context summary failed schema validation: %w", err)
	}
	summary.normalize()
	return &summary, nil
}

func (s *ContextSummary) validate() error {
	if strings.TrimSpace(s.Language) == "" {
		return fmt.Errorf("missing language tag")
	}
	if err := checkConfidence("intent", []ScoredItem{s.Intent}); err != nil {
		return err
	}
	for field, items := range map[string][]ScoredItem{
		"topics":         s.Topics,
		"entities":       s.Entities,
		"preferences":    s.Preferences,
		"constraints":    s.Constraints,
		"open_questions": s.OpenQuestions,
	} {
		if err := checkConfidence(field, items); err != nil {
			return err
		}
	}
	return nil
}

func checkConfidence(field string, items []ScoredItem) error {
	for _, item := range items {
		if item.Confidence < 0 || item.Confidence > 1 {
			return fmt.Errorf("%s confidence %.3f out of range [0,1]", field, item.Confidence)
		}
	}
	return nil
}

// normalize replaces nil slices with empty ones so the summary always
// serializes with every field present.
func (s *ContextSummary) normalize() {
	if s.Topics == nil {
		s.Topics = []ScoredItem{}
	}
	if s.Entities == nil {
		s.Entities = []ScoredItem{}
	}
	if s.Preferences == nil {
		s.Preferences = []ScoredItem{}
	}
	if s.Constraints == nil {
		s.Constraints = []ScoredItem{}
	}
	if s.OpenQuestions == nil {
		s.OpenQuestions = []ScoredItem{}
	}
}

// Render flattens the summary into prompt-ready text.
func (s *ContextSummary) Render() string {
	var sb strings.Builder
	if s.Intent.Value != "" {
		fmt.Fprintf(&sb, "Intent: %s\n", s.Intent.Value)
	}
	writeItems(&sb, "Topics", s.Topics)
	writeItems(&sb, "Entities", s.Entities)
	writeItems(&sb, "Preferences", s.Preferences)
	writeItems(&sb, "Constraints", s.Constraints)
	writeItems(&sb, "Open questions", s.OpenQuestions)
	return strings.TrimSpace(sb.String())
}

func writeItems(sb *strings.Builder, label string, items []ScoredItem) {
	if len(items) == 0 {
		return
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		if item.Value != "" {
			values = append(values, item.Value)
		}
	}
	if len(values) > 0 {
		fmt.Fprintf(sb, "%s: %s\n", label, strings.Join(values, "; "))
	}
}
