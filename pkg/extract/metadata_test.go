package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(context.Context, string, string, string) (string, error) {
	return s.response, s.err
}

func TestMetadataExtractor_LLMPath(t *testing.T) {
	m := NewMetadataExtractor(&stubLLM{response: `{"title":"Legal Tech Summit","date":"2025-04-02","city":"Hamburg"}`}, nil)

	meta := m.Extract(context.Background(), "https://summit.de/x", "# irrelevant")

	assert.Equal(t, "Legal Tech Summit", meta.Title)
	assert.Equal(t, "2025-04-02", meta.Date)
	assert.Equal(t, "Hamburg", meta.City)
}

func TestMetadataExtractor_LLMProseWrapped(t *testing.T) {
	m := NewMetadataExtractor(&stubLLM{response: "Sure! {\"title\":\"Fachkongress\"} Hope this helps."}, nil)

	meta := m.Extract(context.Background(), "https://x.de", "content")
	assert.Equal(t, "Fachkongress", meta.Title)
}

func TestMetadataExtractor_FallsBackToRules(t *testing.T) {
	m := NewMetadataExtractor(&stubLLM{err: errors.New("llm down")}, nil)

	meta := m.Extract(context.Background(), "https://kongress.de/x", "# Compliance Tage 2025\n\nOrt: Köln")

	assert.Equal(t, "Compliance Tage 2025", meta.Title)
	assert.Equal(t, "Köln", meta.City)
	assert.Equal(t, "https://kongress.de", meta.Website)
}

func TestMetadataExtractor_MissingTitleFallsBack(t *testing.T) {
	m := NewMetadataExtractor(&stubLLM{response: `{"city":"Berlin"}`}, nil)

	meta := m.Extract(context.Background(), "https://kongress.de/x", "# Rules Title")
	assert.Equal(t, "Rules Title", meta.Title)
}
