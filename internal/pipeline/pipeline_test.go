package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/docqa-ai/docqa/internal/rag"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeRetriever struct {
	chunks []rag.Chunk
	err    error
	// lastTopK records the topK the pipeline forwarded.
	lastTopK int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, topK int) ([]rag.Chunk, error) {
	f.lastTopK = topK
	return f.chunks, f.err
}

// fakeGenerator echoes a fixed response and records the prompt it was given.
type fakeGenerator struct {
	response string
	err      error
	// streamErr, when set, is returned mid-stream after one token.
	streamErr  error
	lastPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) GenerateStream(_ context.Context, prompt string) (rag.TokenStream, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &fakeTokenStream{tokens: strings.SplitAfter(f.response, " "), err: f.streamErr}, nil
}

type fakeTokenStream struct {
	tokens []string
	err    error
	pos    int
	closed bool
}

func (f *fakeTokenStream) Recv() (string, error) {
	if f.err != nil && f.pos >= 1 {
		return "", f.err
	}
	if f.pos >= len(f.tokens) {
		return "", io.EOF
	}
	tok := f.tokens[f.pos]
	f.pos++
	return tok, nil
}

func (f *fakeTokenStream) Close() { f.closed = true }

func newTestPipeline(t *testing.T, r rag.Retriever, g rag.Generator) *Pipeline {
	t.Helper()
	p, err := New(r, g, Config{})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func drain(t *testing.T, s AnswerStream) string {
	t.Helper()
	var sb strings.Builder
	for {
		tok, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String()
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		sb.WriteString(tok)
	}
}

// ---------------------------------------------------------------------------
// Blocking answers
// ---------------------------------------------------------------------------

func Test_Answer_HappyPath(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{chunks: []rag.Chunk{
		{Source: "policy.md", Text: "Remote work requires manager approval.", Score: 0.9},
	}}
	gen := &fakeGenerator{response: "Manager approval is required. [Source 1]"}
	p := newTestPipeline(t, ret, gen)

	ans, err := p.Answer(context.Background(), "what about remote work?", 3, true)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Text != "Manager approval is required. [Source 1]" {
		t.Errorf("wrong answer text: %q", ans.Text)
	}
	if ret.lastTopK != 3 {
		t.Errorf("topK not forwarded: got %d", ret.lastTopK)
	}
	if !strings.Contains(gen.lastPrompt, "[Source 1: policy.md]") {
		t.Error("generator prompt missing the retrieved context")
	}
	if len(ans.Sources) != 1 || ans.Sources[0].Source != "policy.md" {
		t.Errorf("wrong citations: %+v", ans.Sources)
	}
	if ans.QueryTimeMS < 0 {
		t.Errorf("negative query time: %d", ans.QueryTimeMS)
	}
}

func Test_Answer_EmptyIndexShortCircuitsGenerator(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{response: "should never be used"}
	p := newTestPipeline(t, &fakeRetriever{}, gen)

	ans, err := p.Answer(context.Background(), "anything?", 5, true)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Text != noResultsAnswer {
		t.Errorf("want canned no-results answer, got %q", ans.Text)
	}
	if ans.Sources == nil || len(ans.Sources) != 0 {
		t.Errorf("want empty (non-nil) sources, got %#v", ans.Sources)
	}
	if gen.lastPrompt != "" {
		t.Error("generator was invoked despite empty retrieval")
	}
}

func Test_Answer_ExcludeSources(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{chunks: []rag.Chunk{{Source: "a.md", Text: "text"}}}
	p := newTestPipeline(t, ret, &fakeGenerator{response: "answer"})

	ans, err := p.Answer(context.Background(), "q", 1, false)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources should be suppressed, got %+v", ans.Sources)
	}
}

func Test_Answer_RetrievalErrorPassesThrough(t *testing.T) {
	t.Parallel()

	cause := &rag.RetrievalError{Err: errors.New("qdrant down")}
	p := newTestPipeline(t, &fakeRetriever{err: cause}, &fakeGenerator{})

	_, err := p.Answer(context.Background(), "q", 1, true)
	var retrieval *rag.RetrievalError
	if !errors.As(err, &retrieval) {
		t.Fatalf("want RetrievalError, got %v", err)
	}
}

func Test_Answer_GeneratorErrorWrapped(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{chunks: []rag.Chunk{{Source: "a.md", Text: "text"}}}
	cause := errors.New("model overloaded")
	p := newTestPipeline(t, ret, &fakeGenerator{err: cause})

	_, err := p.Answer(context.Background(), "q", 1, true)
	var gen *rag.GenerationError
	if !errors.As(err, &gen) {
		t.Fatalf("want GenerationError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not preserved")
	}
}

// ---------------------------------------------------------------------------
// Streaming answers
// ---------------------------------------------------------------------------

func Test_AnswerStream_MatchesBlockingText(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{chunks: []rag.Chunk{
		{Source: "policy.md", Text: "PTO requests need 2 weeks notice.", Score: 0.8},
	}}
	gen := &fakeGenerator{response: "Two weeks of notice are required."}
	p := newTestPipeline(t, ret, gen)

	ans, err := p.Answer(context.Background(), "how much notice?", 1, true)
	if err != nil {
		t.Fatalf("blocking answer: %v", err)
	}

	s, err := p.AnswerStream(context.Background(), "how much notice?", 1)
	if err != nil {
		t.Fatalf("answer stream: %v", err)
	}
	defer s.Close()

	if got := drain(t, s); got != ans.Text {
		t.Errorf("stream text %q != blocking text %q", got, ans.Text)
	}
}

func Test_AnswerStream_SourcesOnlyAfterEOF(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{chunks: []rag.Chunk{{Source: "a.md", Text: "alpha", Score: 0.7}}}
	p := newTestPipeline(t, ret, &fakeGenerator{response: "token one two"})

	s, err := p.AnswerStream(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("answer stream: %v", err)
	}
	defer s.Close()

	if s.Sources() != nil {
		t.Error("sources available before the stream finished")
	}
	drain(t, s)
	srcs := s.Sources()
	if len(srcs) != 1 || srcs[0].Source != "a.md" {
		t.Errorf("wrong sources after EOF: %+v", srcs)
	}
}

func Test_AnswerStream_EmptyIndexYieldsCannedAnswer(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeRetriever{}, &fakeGenerator{response: "unused"})

	s, err := p.AnswerStream(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("answer stream: %v", err)
	}
	defer s.Close()

	if got := drain(t, s); got != noResultsAnswer {
		t.Errorf("want canned answer, got %q", got)
	}
	if srcs := s.Sources(); srcs == nil || len(srcs) != 0 {
		t.Errorf("want empty (non-nil) sources, got %#v", srcs)
	}
}

func Test_AnswerStream_MidStreamErrorIsGenerationError(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{chunks: []rag.Chunk{{Source: "a.md", Text: "alpha"}}}
	gen := &fakeGenerator{response: "one two three", streamErr: errors.New("connection reset")}
	p := newTestPipeline(t, ret, gen)

	s, err := p.AnswerStream(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("answer stream: %v", err)
	}
	defer s.Close()

	if _, err := s.Recv(); err != nil {
		t.Fatalf("first token should be delivered before the failure: %v", err)
	}
	_, err = s.Recv()
	var genErr *rag.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("want GenerationError mid-stream, got %v", err)
	}
	if s.Sources() != nil {
		t.Error("sources must stay unavailable after a failed stream")
	}
}

func Test_AnswerStream_CloseReleasesTokenStream(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{chunks: []rag.Chunk{{Source: "a.md", Text: "alpha"}}}
	ts := &fakeTokenStream{tokens: []string{"one"}}
	gen := &streamOnlyGenerator{stream: ts}
	p := newTestPipeline(t, ret, gen)

	s, err := p.AnswerStream(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("answer stream: %v", err)
	}
	s.Close()
	if !ts.closed {
		t.Error("Close did not propagate to the token stream")
	}
}

// streamOnlyGenerator hands out a pre-built token stream.
type streamOnlyGenerator struct {
	stream rag.TokenStream
}

func (g *streamOnlyGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func (g *streamOnlyGenerator) GenerateStream(context.Context, string) (rag.TokenStream, error) {
	return g.stream, nil
}

// ---------------------------------------------------------------------------
// Citations
// ---------------------------------------------------------------------------

func Test_BuildCitations_DedupesBySource(t *testing.T) {
	t.Parallel()

	chunks := []rag.Chunk{
		{Source: "a.md", Text: "best a", Score: 0.9},
		{Source: "b.md", Text: "best b", Score: 0.8},
		{Source: "a.md", Text: "worse a", Score: 0.7},
	}
	got := buildCitations(chunks)
	if len(got) != 2 {
		t.Fatalf("want 2 citations, got %d", len(got))
	}
	if got[0].Source != "a.md" || got[0].Snippet != "best a" || got[0].Score != 0.9 {
		t.Errorf("first citation should keep the best-ranked chunk: %+v", got[0])
	}
	if got[1].Source != "b.md" {
		t.Errorf("second citation: %+v", got[1])
	}
}

func Test_BuildCitations_SnippetTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", snippetLimit+100)
	got := buildCitations([]rag.Chunk{{Source: "a.md", Text: long}})
	if len(got[0].Snippet) != snippetLimit+3 {
		t.Errorf("snippet length %d, want %d", len(got[0].Snippet), snippetLimit+3)
	}
	if !strings.HasSuffix(got[0].Snippet, "...") {
		t.Error("truncated snippet missing ellipsis")
	}
}
