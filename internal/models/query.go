package models

import "fmt"

// SearchQuery represents a note search request. Semantic search is the
// default; Keyword switches to the keyword index instead.
type SearchQuery struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
	Keyword bool   `json:"keyword,omitempty"`
}

// Validate ensures the query has valid fields and normalizes the limit
// against the given defaults. Returns an error if the query text is empty.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// SearchResult is a single search hit.
type SearchResult struct {
	Note  *Note   `json:"note"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	// Keyword reports whether the keyword index served this search.
	Keyword bool `json:"keyword,omitempty"`
}

// SuggestRequest asks for tag suggestions for a piece of text.
type SuggestRequest struct {
	Body string `json:"body"`
}

// SuggestResponse carries the suggested tags, best match first.
type SuggestResponse struct {
	Tags []string `json:"tags"`
}
