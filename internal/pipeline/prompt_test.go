package pipeline

import (
	"strings"
	"testing"

	"github.com/docqa-ai/docqa/internal/rag"
)

func Test_Assemble_NoChunksUsesNoContextInstruction(t *testing.T) {
	t.Parallel()

	prompt := NewAssembler(0).Assemble("what is the policy?", nil)
	if !strings.Contains(prompt, noContextInstruction) {
		t.Error("prompt missing the no-context instruction")
	}
	if !strings.Contains(prompt, "Question: what is the policy?") {
		t.Error("prompt missing the question")
	}
}

func Test_Assemble_SourceMarkers(t *testing.T) {
	t.Parallel()

	chunks := []rag.Chunk{
		{Source: "policy.md", Text: "Remote work requires manager approval."},
		{Source: "handbook.md", Text: "PTO requests need 2 weeks notice."},
	}
	prompt := NewAssembler(0).Assemble("how do I request PTO?", chunks)

	if !strings.Contains(prompt, "[Source 1: policy.md]\nRemote work requires manager approval.") {
		t.Error("first chunk not tagged with its source marker")
	}
	if !strings.Contains(prompt, "[Source 2: handbook.md]\nPTO requests need 2 weeks notice.") {
		t.Error("second chunk not tagged with its source marker")
	}
	if !strings.Contains(prompt, contextSeparator) {
		t.Error("chunks not separated")
	}
	if !strings.Contains(prompt, groundingInstruction) {
		t.Error("prompt missing the grounding instruction")
	}
}

func Test_Assemble_ContextBudget(t *testing.T) {
	t.Parallel()

	chunks := []rag.Chunk{
		{Source: "a.md", Text: strings.Repeat("a", 50)},
		{Source: "b.md", Text: strings.Repeat("b", 50)},
		{Source: "c.md", Text: strings.Repeat("c", 50)},
	}

	// Budget fits the first chunk whole, truncates the second, drops the third.
	prompt := NewAssembler(70).Assemble("q", chunks)

	if !strings.Contains(prompt, strings.Repeat("a", 50)) {
		t.Error("best-ranked chunk should be kept whole")
	}
	if !strings.Contains(prompt, "[Source 2: b.md]\n"+strings.Repeat("b", 20)) {
		t.Error("overflowing chunk should be trimmed to the remaining budget")
	}
	if strings.Contains(prompt, strings.Repeat("b", 21)) {
		t.Error("overflowing chunk kept more than the remaining budget")
	}
	if strings.Contains(prompt, "c.md") {
		t.Error("chunks past the budget should be dropped entirely")
	}
}

func Test_Assemble_BudgetExactFit(t *testing.T) {
	t.Parallel()

	chunks := []rag.Chunk{
		{Source: "a.md", Text: strings.Repeat("a", 40)},
		{Source: "b.md", Text: strings.Repeat("b", 40)},
	}
	prompt := NewAssembler(40).Assemble("q", chunks)

	if !strings.Contains(prompt, "a.md") {
		t.Error("first chunk missing")
	}
	if strings.Contains(prompt, "b.md") {
		t.Error("budget exhausted by the first chunk, second should be dropped")
	}
}
