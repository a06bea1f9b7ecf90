package rag

import (
	"context"
	"errors"
	"testing"
)

// fakeEmbedder returns a fixed vector for every input text, or a
// configurable error.
type fakeEmbedder struct {
	vec []float32
	err error
	// calls records the batches received.
	calls [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

// failingStore errors on every search.
type failingStore struct {
	MemoryStore
	err error
}

func (f *failingStore) Search(context.Context, []float32, int) ([]Chunk, error) {
	return nil, f.err
}

func newTestRetriever(t *testing.T, emb Embedder, store VectorStore) *DefaultRetriever {
	t.Helper()
	r, err := NewRetriever(emb, store, 5)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r
}

func Test_Retriever_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()
	r := newTestRetriever(t, &fakeEmbedder{vec: []float32{1}}, NewMemoryStore())

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := r.Retrieve(context.Background(), q, 3)
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Errorf("question %q: want InvalidInputError, got %v", q, err)
		}
	}
}

func Test_Retriever_NegativeTopKRejected(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1}}
	r := newTestRetriever(t, emb, NewMemoryStore())

	_, err := r.Retrieve(context.Background(), "question", -1)
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("want InvalidInputError, got %v", err)
	}
	if len(emb.calls) != 0 {
		t.Error("embedder was called for rejected input")
	}
}

func Test_Retriever_ZeroTopKUsesDefault(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	ctx := context.Background()

	// Seed more chunks than the default of 5.
	for i := range 8 {
		upsertOne(t, store, string(rune('a'+i)), "doc", "", []float32{1, float32(i)})
	}

	r := newTestRetriever(t, &fakeEmbedder{vec: []float32{1, 0}}, store)
	got, err := r.Retrieve(ctx, "question", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("want default of 5 results, got %d", len(got))
	}
}

func Test_Retriever_EmptyIndexIsNotAnError(t *testing.T) {
	t.Parallel()
	r := newTestRetriever(t, &fakeEmbedder{vec: []float32{1}}, NewMemoryStore())

	got, err := r.Retrieve(context.Background(), "anything indexed?", 5)
	if err != nil {
		t.Fatalf("retrieve on empty index: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want no chunks, got %d", len(got))
	}
}

func Test_Retriever_EmbedderFailureWrapped(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	r := newTestRetriever(t, &fakeEmbedder{err: cause}, NewMemoryStore())

	_, err := r.Retrieve(context.Background(), "question", 3)
	var retrieval *RetrievalError
	if !errors.As(err, &retrieval) {
		t.Fatalf("want RetrievalError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not preserved through wrapping")
	}
}

func Test_Retriever_SearchFailureWrapped(t *testing.T) {
	t.Parallel()
	cause := errors.New("index unavailable")
	r := newTestRetriever(t, &fakeEmbedder{vec: []float32{1}}, &failingStore{err: cause})

	_, err := r.Retrieve(context.Background(), "question", 3)
	var retrieval *RetrievalError
	if !errors.As(err, &retrieval) {
		t.Fatalf("want RetrievalError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not preserved through wrapping")
	}
}

func Test_Retriever_NilDependenciesRejected(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, NewMemoryStore(), 5); err == nil {
		t.Error("nil embedder accepted")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 5); err == nil {
		t.Error("nil store accepted")
	}
}
