package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force in-memory VectorStore using cosine similarity.
// It backs local mode and unit tests; for production corpora use QdrantStore.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	chunks  map[string]Chunk
	vectors map[string][]float32
	// order records insertion order so equal-score results are returned in a
	// stable, deterministic sequence.
	order []string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks:  make(map[string]Chunk),
		vectors: make(map[string][]float32),
	}
}

// Upsert stores or replaces chunks keyed by their IDs.
func (s *MemoryStore) Upsert(_ context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("memory: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range chunks {
		if _, exists := s.chunks[c.ID]; !exists {
			s.order = append(s.order, c.ID)
		}
		s.chunks[c.ID] = c
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		s.vectors[c.ID] = vec
	}
	return nil
}

// Search returns the topK most similar chunks by cosine similarity, most
// similar first. Ties keep insertion order.
func (s *MemoryStore) Search(_ context.Context, queryEmbedding []float32, topK int) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		id    string
		score float32
	}

	results := make([]scored, 0, len(s.order))
	for _, id := range s.order {
		results = append(results, scored{id: id, score: cosine(s.vectors[id], queryEmbedding)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if topK > len(results) {
		topK = len(results)
	}

	out := make([]Chunk, 0, topK)
	for _, r := range results[:topK] {
		c := s.chunks[r.id]
		c.Score = r.score
		out = append(out, c)
	}
	return out, nil
}

// Delete removes chunks by ID. Unknown IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.chunks[id]; !ok {
			continue
		}
		delete(s.chunks, id)
		delete(s.vectors, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

// DeleteBySource removes every chunk whose Source matches.
func (s *MemoryStore) DeleteBySource(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		if s.chunks[id].Source == source {
			delete(s.chunks, id)
			delete(s.vectors, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.chunks)), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// cosine computes the cosine similarity between two vectors. Mismatched
// lengths compare over the shorter prefix; zero vectors score zero.
func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
