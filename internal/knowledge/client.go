package knowledge

import (
	"context"
	"strings"
)

// Document is one retrieved knowledge-base fragment.
type Document struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Searcher retrieves documents relevant to a query from the vector store.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Document, error)
}

// NewSearcher returns an HTTP-backed searcher when a base URL is configured,
// otherwise a mock that returns no documents.
func NewSearcher(baseURL string) Searcher {
	if strings.TrimSpace(baseURL) == "" {
		return NewMockSearcher(nil)
	}
	return NewHTTPSearcher(baseURL)
}

// Context joins retrieved documents into a prompt block.
func Context(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if t := strings.TrimSpace(d.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
