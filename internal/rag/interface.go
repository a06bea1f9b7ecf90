// Package rag defines the core data types and interfaces for the
// retrieval-augmented generation pipeline: embedding, vector storage,
// retrieval, and grounded text generation. Concrete implementations
// (Qdrant, Ollama, eino chat models, in-memory fakes) satisfy these
// interfaces so the pipeline layer never depends on a specific backend.
package rag

import (
	"context"
)

// Document is a raw source document submitted for ingestion.
// It is immutable once chunked; chunks carry value copies of its metadata.
type Document struct {
	// Source is the origin identifier: a URL, file path, or caller-supplied ID.
	Source string

	// Content is the full raw text of the document.
	Content string

	// Metadata holds arbitrary key-value pairs attached at ingestion time
	// (category, author, title, etc.).
	Metadata map[string]string
}

// Chunk is a bounded segment of a document: the unit of embedding, storage,
// and retrieval. After retrieval, Score carries the similarity assigned by
// the vector store.
type Chunk struct {
	// ID is the stable identifier for this chunk, derived from the document
	// source and chunk index so re-ingestion overwrites rather than duplicates.
	ID string

	// Text is the chunk's text content.
	Text string

	// Index is the chunk's position within its document, starting at 0.
	Index int

	// Source is the originating document's source identifier.
	Source string

	// Metadata is a value copy of the document metadata, extended with
	// chunk-level fields.
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval (0.0–1.0 for
	// cosine). Zero value means the score was not computed.
	Score float32
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists and searches chunk embeddings.
// Implementations must be safe to call from multiple goroutines; concurrent
// reads are unrestricted, and Upsert calls for distinct chunk IDs may proceed
// in parallel.
type VectorStore interface {
	// Upsert stores or replaces a batch of chunks with their pre-computed
	// embeddings. embeddings[i] is the vector for chunks[i]. Chunks with an
	// ID already present in the store are overwritten.
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search returns the topK chunks most similar to queryEmbedding, ordered
	// by non-increasing score. Fewer than topK results are returned when the
	// store holds fewer chunks; an empty store yields an empty slice, not an
	// error.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Chunk, error)

	// Delete removes chunks by their IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of chunks currently stored.
	Count(ctx context.Context) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}

// Retriever fetches the chunks most relevant to a natural-language question.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve embeds the question and returns the topK most similar chunks,
	// most similar first.
	Retrieve(ctx context.Context, question string, topK int) ([]Chunk, error)
}

// TokenStream is a finite, non-restartable sequence of generated text
// increments. Recv returns io.EOF once the stream is exhausted. Close
// releases the stream and signals the producer to stop; closing early is the
// normal cancellation path, not an error.
type TokenStream interface {
	// Recv returns the next text increment, or io.EOF when generation is
	// complete, or any other error if generation failed mid-stream.
	Recv() (string, error)

	// Close releases the stream. Safe to call after Recv returned an error.
	Close()
}

// Generator is a language model invoked with a fully assembled prompt.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Generate produces the complete response for prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream produces the response incrementally. The caller owns
	// the returned stream and must Close it.
	GenerateStream(ctx context.Context, prompt string) (TokenStream, error)
}
