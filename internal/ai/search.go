package ai

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

const searchResultCount = 5

// SearchClient fetches web evidence for prediction verification through the
// Programmable Search Engine API.
type SearchClient struct {
	svc      *customsearch.Service
	engineID string
}

func NewSearchClient(ctx context.Context, apiKey, engineID string) (*SearchClient, error) {
	if apiKey == "" || engineID == "" {
		return nil, fmt.Errorf("search: api key and engine id are required")
	}

	svc, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("search: create service: %w", err)
	}
	return &SearchClient{svc: svc, engineID: engineID}, nil
}

func (s *SearchClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	resp, err := s.svc.Cse.List().
		Context(ctx).
		Cx(s.engineID).
		Q(query).
		Num(searchResultCount).
		Do()
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	out := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, SearchResult{
			Title:   item.Title,
			Snippet: item.Snippet,
			Link:    item.Link,
		})
	}
	return out, nil
}
