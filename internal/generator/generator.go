// Package generator adapts an eino chat model to the rag.Generator contract:
// a blocking Generate call and an incremental GenerateStream over the fully
// assembled prompt. The pipeline layer owns prompt construction; this
// package only shuttles text in and out of the model.
package generator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docqa-ai/docqa/internal/rag"
)

// ChatGenerator implements rag.Generator on top of an eino chat model.
// Safe for concurrent use as long as the underlying model is.
type ChatGenerator struct {
	// model is the LLM backend constructed by the provider factory.
	model model.BaseChatModel
}

// New constructs a ChatGenerator from the given chat model.
func New(m model.BaseChatModel) (*ChatGenerator, error) {
	if m == nil {
		return nil, fmt.Errorf("generator: chat model must not be nil")
	}
	return &ChatGenerator{model: m}, nil
}

// Generate produces the complete response for prompt in one call.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("generator: generate: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("generator: model returned nil message")
	}
	return msg.Content, nil
}

// GenerateStream produces the response incrementally. The caller owns the
// returned stream and must Close it; closing early signals the model to
// stop producing.
func (g *ChatGenerator) GenerateStream(ctx context.Context, prompt string) (rag.TokenStream, error) {
	sr, err := g.model.Stream(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("generator: stream: %w", err)
	}
	return &messageStream{sr: sr}, nil
}

// messageStream adapts an eino message stream to rag.TokenStream, skipping
// frames that carry no text content (role-only or telemetry deltas).
type messageStream struct {
	sr *schema.StreamReader[*schema.Message]
}

// Recv returns the next non-empty text increment, io.EOF at end of stream,
// or the model's error on mid-stream failure.
func (s *messageStream) Recv() (string, error) {
	for {
		msg, err := s.sr.Recv()
		if err != nil {
			return "", err
		}
		if msg != nil && msg.Content != "" {
			return msg.Content, nil
		}
	}
}

// Close releases the underlying stream reader.
func (s *messageStream) Close() {
	s.sr.Close()
}
