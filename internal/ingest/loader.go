package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docqa-ai/docqa/internal/rag"
)

// supportedExtensions lists the file types the loaders accept.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

// FromText wraps raw text in a document. The caller supplies the source
// identifier; metadata may be nil.
func FromText(source, content string, metadata map[string]string) rag.Document {
	meta := map[string]string{"type": "text"}
	for k, v := range metadata {
		meta[k] = v
	}
	return rag.Document{Source: source, Content: content, Metadata: meta}
}

// FromFile reads a single file, extracting plain text from markdown and
// HTML. Unsupported extensions are rejected with an InvalidInputError.
func FromFile(path string, metadata map[string]string) (rag.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return rag.Document{}, rag.NewInvalidInput("unsupported file type %q", ext)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	meta := map[string]string{
		"type":     "file",
		"filename": filepath.Base(path),
	}
	for k, v := range metadata {
		meta[k] = v
	}

	content, title, err := extractContent(raw, ext)
	if err != nil {
		return rag.Document{}, fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	if title != "" {
		meta["title"] = title
	}

	return rag.Document{Source: path, Content: content, Metadata: meta}, nil
}

// FromDirectory walks a directory recursively and loads every supported
// file. Unreadable or unparseable files are skipped; the error return is
// reserved for a missing or unwalkable root.
func FromDirectory(root string, metadata map[string]string) ([]rag.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("ingest: stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, rag.NewInvalidInput("%q is not a directory", root)
	}

	var docs []rag.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		doc, err := FromFile(path, metadata)
		if err != nil {
			return nil // skip bad files, keep walking
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: walk %s: %w", root, err)
	}
	return docs, nil
}

// extractContent converts raw file bytes to plain text based on extension.
// The second return is the document title when the format carries one.
func extractContent(raw []byte, ext string) (string, string, error) {
	switch ext {
	case ".md", ".markdown":
		return markdownText(raw), "", nil
	case ".html", ".htm":
		page, err := parseHTML(raw)
		if err != nil {
			return "", "", err
		}
		return page.Text, page.Title, nil
	default:
		return strings.TrimSpace(string(raw)), "", nil
	}
}
