package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSearcher queries a vector search endpoint.
type HTTPSearcher struct {
	url    string
	client *http.Client
}

func NewHTTPSearcher(baseURL string) *HTTPSearcher {
	return &HTTPSearcher{
		url:    strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/search",
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []Document `json:"results"`
}

func (s *HTTPSearcher) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 2
	}
	payload, err := json.Marshal(searchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send search request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("knowledge search status %d: %s", res.StatusCode, string(body))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}
