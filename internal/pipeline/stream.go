package pipeline

import (
	"errors"
	"io"

	"github.com/docqa-ai/docqa/internal/rag"
)

// AnswerStream yields answer text incrementally. Recv returns io.EOF once
// the generator finishes; after that Sources returns the citation list for
// the completed answer. A mid-stream generator failure is reported as a
// rag.GenerationError, never as a silent truncation.
type AnswerStream interface {
	// Recv returns the next text increment, or io.EOF when the answer is
	// complete.
	Recv() (string, error)

	// Sources returns the citations for the completed answer. It returns
	// nil until Recv has reported io.EOF.
	Sources() []Citation

	// Close releases the underlying generator stream. Safe to call at any
	// point, including after an error.
	Close()
}

type stream struct {
	tokens  rag.TokenStream
	sources []Citation

	// pending carries the canned no-results answer when retrieval found
	// nothing and no generator stream was opened.
	pending string
	done    bool
}

// Recv returns the next text increment, or io.EOF when the answer is
// complete.
func (s *stream) Recv() (string, error) {
	if s.tokens == nil {
		if s.pending != "" {
			t := s.pending
			s.pending = ""
			return t, nil
		}
		s.done = true
		return "", io.EOF
	}

	tok, err := s.tokens.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return "", io.EOF
		}
		return "", &rag.GenerationError{Err: err}
	}
	return tok, nil
}

// Sources returns the citations for the completed answer. It returns nil
// until Recv has reported io.EOF.
func (s *stream) Sources() []Citation {
	if !s.done {
		return nil
	}
	return s.sources
}

// Close releases the underlying generator stream. Safe to call at any
// point, including after an error.
func (s *stream) Close() {
	if s.tokens != nil {
		s.tokens.Close()
	}
}
