package pipeline

import (
	"fmt"
	"strings"

	"github.com/docqa-ai/docqa/internal/rag"
)

const (
	// defaultMaxContextChars bounds the concatenated chunk text injected
	// into the prompt. Chunks beyond the budget are dropped lowest-ranked
	// first so the most relevant context always survives.
	defaultMaxContextChars = 8000

	contextSeparator = "\n\n---\n\n"

	groundingInstruction = "Answer the question using ONLY the provided context. Be concise and factual.\n\n" +
		"Rules:\n" +
		"1. Use ONLY information from the context below.\n" +
		"2. If the context does not contain enough information, say \"I don't have enough information in my knowledge base to answer this question fully\".\n" +
		"3. Cite the sources you used by their [Source N] identifier.\n" +
		"4. Keep the answer brief and focused."

	noContextInstruction = "No relevant context was found for this question. " +
		"State clearly that no relevant information is available in the knowledge base. " +
		"Do not invent an answer."
)

// Assembler builds a single grounded prompt from a question and the chunks
// retrieved for it. Chunks are expected in retrieval order, best match first.
type Assembler struct {
	maxContextChars int
}

// NewAssembler returns an Assembler with the given context budget in
// characters. Non-positive values select the default budget.
func NewAssembler(maxContextChars int) *Assembler {
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	return &Assembler{maxContextChars: maxContextChars}
}

// Assemble produces the full prompt string. With no chunks it emits an
// explicit no-context instruction instead of an empty context block, so the
// model cannot quietly answer from its own weights.
func (a *Assembler) Assemble(question string, chunks []rag.Chunk) string {
	var sb strings.Builder
	sb.WriteString(groundingInstruction)
	sb.WriteString("\n\nContext:\n")

	if len(chunks) == 0 {
		sb.WriteString(noContextInstruction)
	} else {
		sb.WriteString(a.formatContext(chunks))
	}

	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer concisely based on the context above. Cite sources when relevant.")
	return sb.String()
}

// formatContext concatenates chunk texts, each tagged with a source marker
// the model can cite. The total is capped at maxContextChars: whole chunks
// are kept from the best-ranked end, the first chunk that overflows the
// budget is trimmed to fit, and everything after it is dropped.
func (a *Assembler) formatContext(chunks []rag.Chunk) string {
	var sb strings.Builder
	remaining := a.maxContextChars

	for i, c := range chunks {
		text := c.Text
		if len(text) > remaining {
			text = text[:remaining]
		}
		if text == "" {
			break
		}
		if i > 0 {
			sb.WriteString(contextSeparator)
		}
		fmt.Fprintf(&sb, "[Source %d: %s]\n%s", i+1, c.Source, text)
		remaining -= len(text)
		if remaining <= 0 {
			break
		}
	}
	return sb.String()
}
