// Package pipeline composes the retriever, prompt assembler and generator
// into the end-to-end question-answering flow, in both blocking and
// streaming form. Answers carry citations derived from the chunks that
// actually went into the prompt.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docqa-ai/docqa/internal/logging"
	"github.com/docqa-ai/docqa/internal/rag"
)

// noResultsAnswer is returned verbatim when retrieval finds nothing. The
// generator is not invoked in that case, so blocking and streaming answers
// stay identical.
const noResultsAnswer = "I couldn't find any relevant information in my knowledge base to " +
	"answer your question. Please try rephrasing or ask about a different topic."

// snippetLimit caps the chunk excerpt carried in a citation.
const snippetLimit = 500

// Citation points a reader back at a source document that contributed
// context to an answer. One citation per unique source, ordered by the
// source's best-ranked chunk.
type Citation struct {
	Source  string  `json:"document_id"`
	Snippet string  `json:"snippet"`
	Score   float32 `json:"score"`
}

// Answer is the result of a blocking query.
type Answer struct {
	Text        string     `json:"answer"`
	Sources     []Citation `json:"sources"`
	QueryTimeMS int64      `json:"query_time_ms"`
}

// Config holds pipeline tuning knobs.
type Config struct {
	// DefaultTopK is used when a query does not specify top_k.
	DefaultTopK int
	// MaxContextChars bounds the concatenated context in the prompt.
	MaxContextChars int
}

// Pipeline is the top-level query coordinator.
type Pipeline struct {
	retriever rag.Retriever
	generator rag.Generator
	assembler *Assembler
}

// New validates collaborators and builds a Pipeline.
func New(retriever rag.Retriever, generator rag.Generator, cfg Config) (*Pipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("pipeline: retriever must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("pipeline: generator must not be nil")
	}
	return &Pipeline{
		retriever: retriever,
		generator: generator,
		assembler: NewAssembler(cfg.MaxContextChars),
	}, nil
}

// Answer runs retrieve → assemble → generate and returns the complete
// answer. A retrieval failure surfaces before the generator is touched;
// a generator failure surfaces as a rag.GenerationError. Setting
// includeSources to false skips citation construction only.
func (p *Pipeline) Answer(ctx context.Context, question string, topK int, includeSources bool) (*Answer, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	chunks, err := p.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		log.Warn("query: no chunks retrieved", slog.String("question", clip(question, 100)))
		return &Answer{
			Text:        noResultsAnswer,
			Sources:     []Citation{},
			QueryTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}

	prompt := p.assembler.Assemble(question, chunks)
	log.Debug("query: prompt assembled",
		slog.Int("chunks", len(chunks)),
		slog.Int("prompt_chars", len(prompt)),
	)

	text, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, &rag.GenerationError{Err: err}
	}

	ans := &Answer{
		Text:        text,
		Sources:     []Citation{},
		QueryTimeMS: time.Since(start).Milliseconds(),
	}
	if includeSources {
		ans.Sources = buildCitations(chunks)
	}
	return ans, nil
}

// AnswerStream runs the same flow but returns a stream of text increments.
// Citations become available from Stream.Sources once Recv has returned
// io.EOF, so they always describe the completed answer.
func (p *Pipeline) AnswerStream(ctx context.Context, question string, topK int) (AnswerStream, error) {
	chunks, err := p.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return &stream{pending: noResultsAnswer, sources: []Citation{}}, nil
	}

	prompt := p.assembler.Assemble(question, chunks)
	tokens, err := p.generator.GenerateStream(ctx, prompt)
	if err != nil {
		return nil, &rag.GenerationError{Err: err}
	}
	return &stream{tokens: tokens, sources: buildCitations(chunks)}, nil
}

// buildCitations derives one citation per unique source from chunks in
// retrieval order, so the best-ranked appearance of each source wins.
func buildCitations(chunks []rag.Chunk) []Citation {
	seen := make(map[string]bool, len(chunks))
	citations := make([]Citation, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		snippet := c.Text
		if len(snippet) > snippetLimit {
			snippet = snippet[:snippetLimit] + "..."
		}
		citations = append(citations, Citation{
			Source:  c.Source,
			Snippet: snippet,
			Score:   c.Score,
		})
	}
	return citations
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
