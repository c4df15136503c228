package retrieval

import "context"

// Passage is a retrieved corpus fragment with its originating document.
type Passage struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// Retriever returns the most relevant passages for a query, at most the
// configured top-K, possibly none.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Passage, error)
}
