package knowledge

import "context"

// MockSearcher returns a fixed document set, for local use and tests.
type MockSearcher struct {
	docs []Document
}

func NewMockSearcher(docs []Document) *MockSearcher {
	return &MockSearcher{docs: docs}
}

func (m *MockSearcher) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if topK > 0 && topK < len(m.docs) {
		return m.docs[:topK], nil
	}
	return m.docs, nil
}
