package rag

import "fmt"

// InvalidInputError reports a request rejected before any external call:
// an empty document or question, or a non-positive top-k.
type InvalidInputError struct {
	// Reason describes what was wrong with the input.
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// NewInvalidInput constructs an InvalidInputError with a formatted reason.
func NewInvalidInput(format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// RetrievalError reports a failure in the retrieval stage, the embedder or
// the vector index was unreachable or returned an error. When retrieval
// fails the generator is never invoked.
type RetrievalError struct {
	// Err is the underlying embedder or index error.
	Err error
}

func (e *RetrievalError) Error() string {
	return "retrieval failed: " + e.Err.Error()
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError reports a failure in the generation stage, after retrieval
// already succeeded. In streaming mode, increments already delivered before
// the failure are not retracted.
type GenerationError struct {
	// Err is the underlying language-model error.
	Err error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }
