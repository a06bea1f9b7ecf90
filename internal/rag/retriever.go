package rag

import (
	"context"
	"fmt"
	"strings"
)

// DefaultRetriever implements the Retriever interface by combining an
// Embedder and a VectorStore. It embeds the question at retrieval time and
// delegates similarity search to the store. Equal-score results keep the
// store's native order; no secondary re-sort is applied.
type DefaultRetriever struct {
	// embedder converts the question text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results returned when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore. defaultTopK sets the fallback result count when Retrieve is
// called with topK=0.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &DefaultRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the question and returns the topK most similar chunks,
// most similar first. A topK of 0 uses the configured default; a negative
// topK or an empty question is rejected before any external call. An index
// holding fewer than topK chunks returns everything available; an empty
// index returns an empty slice.
func (r *DefaultRetriever) Retrieve(ctx context.Context, question string, topK int) ([]Chunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, NewInvalidInput("question must not be empty")
	}
	if topK < 0 {
		return nil, NewInvalidInput("top_k must be positive, got %d", topK)
	}
	if topK == 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, &RetrievalError{Err: fmt.Errorf("embedding question: %w", err)}
	}
	if len(embeddings) == 0 {
		return nil, &RetrievalError{Err: fmt.Errorf("embedder returned no vector for question")}
	}

	chunks, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, &RetrievalError{Err: fmt.Errorf("vector search: %w", err)}
	}

	return chunks, nil
}
