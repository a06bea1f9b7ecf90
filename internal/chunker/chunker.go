// Package chunker splits raw documents into overlapping text segments
// suitable for embedding. Splits are attempted at the largest structural
// boundary that fits: paragraph break, then sentence break, then
// whitespace, then a hard cut, so chunks stay semantically coherent.
// Chunking is pure and deterministic: identical input and configuration
// always produce identical output.
package chunker

import (
	"strings"

	"github.com/docqa-ai/docqa/internal/rag"
)

// Config controls chunking behaviour. Sizes are in characters, matching the
// unit the REST embedders consume.
type Config struct {
	// Size is the maximum length of a chunk. Defaults to 1000 if zero.
	Size int

	// Overlap is the number of characters each chunk after the first shares
	// with the end of its predecessor. Must be strictly less than Size;
	// values >= Size are clamped to Size/10. Defaults to 200 if zero or
	// negative.
	Overlap int
}

// resolve applies defaults and the overlap < size invariant.
func (c Config) resolve() Config {
	if c.Size <= 0 {
		c.Size = 1000
	}
	if c.Overlap <= 0 {
		c.Overlap = 200
	}
	if c.Overlap >= c.Size {
		c.Overlap = c.Size / 10
	}
	return c
}

// Chunk splits doc into overlapping segments of at most cfg.Size characters.
// Each returned chunk carries the document source, its position within the
// document, and a value copy of the document metadata. An empty document
// yields no chunks; a document shorter than cfg.Size yields exactly one.
func Chunk(doc rag.Document, cfg Config) []rag.Chunk {
	cfg = cfg.resolve()

	pieces := Split(doc.Content, cfg.Size, cfg.Overlap)

	chunks := make([]rag.Chunk, 0, len(pieces))
	for i, text := range pieces {
		meta := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		chunks = append(chunks, rag.Chunk{
			Text:     text,
			Index:    i,
			Source:   doc.Source,
			Metadata: meta,
		})
	}
	return chunks
}

// Split breaks text into pieces of at most size characters, preferring
// paragraph boundaries, then sentence boundaries, then whitespace, then a
// hard cut. Consecutive pieces overlap by up to overlap characters.
func Split(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var pieces []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		pieces = append(pieces, buf.String())
		tail := overlapTail(buf.String(), overlap)
		buf.Reset()
		buf.WriteString(tail)
	}

	// appendUnit adds a unit to the buffer, flushing first when the unit
	// would overflow the current piece.
	appendUnit := func(unit, sep string) {
		if buf.Len() > 0 && buf.Len()+len(sep)+len(unit) > size {
			flush()
			// The carried overlap plus this unit may still overflow; drop
			// the overlap rather than exceed the chunk size.
			if buf.Len() > 0 && buf.Len()+len(sep)+len(unit) > size {
				buf.Reset()
			}
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(unit)
	}

	for _, para := range splitParagraphs(text) {
		if len(para) <= size {
			appendUnit(para, "\n\n")
			continue
		}
		for _, sent := range splitSentences(para) {
			if len(sent) <= size {
				appendUnit(sent, " ")
				continue
			}
			// A single oversized sentence: fall back to whitespace splits,
			// hard-cutting any run that still exceeds the chunk size.
			for _, word := range strings.Fields(sent) {
				for len(word) > size {
					appendUnit(word[:size], " ")
					flush()
					word = word[size:]
				}
				appendUnit(word, " ")
			}
		}
	}

	if buf.Len() > 0 {
		pieces = append(pieces, buf.String())
	}
	return pieces
}

// splitParagraphs splits on blank lines, trimming and dropping empty parts.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences performs basic sentence splitting on terminal punctuation
// followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && i+1 < len(text) && text[i+1] == ' ' {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// overlapTail returns the trailing overlap characters of text, extended back
// to the nearest whitespace boundary so the overlap never starts mid-word.
// Returns "" when overlap is zero or text is shorter than overlap.
func overlapTail(text string, overlap int) string {
	if overlap <= 0 || len(text) <= overlap {
		return ""
	}
	tail := text[len(text)-overlap:]
	// Drop the leading partial word.
	if i := strings.IndexAny(tail, " \n\t"); i >= 0 {
		tail = strings.TrimSpace(tail[i:])
	}
	return tail
}
