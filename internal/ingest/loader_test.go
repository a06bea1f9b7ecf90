package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docqa-ai/docqa/internal/rag"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func Test_FromText(t *testing.T) {
	t.Parallel()

	doc := FromText("notes-1", "some content", map[string]string{"author": "hr"})
	if doc.Source != "notes-1" || doc.Content != "some content" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Metadata["type"] != "text" || doc.Metadata["author"] != "hr" {
		t.Errorf("metadata = %v", doc.Metadata)
	}
}

func Test_FromFile_Markdown(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "policy.md", "# Policy\n\nRemote work requires approval.\n")

	doc, err := FromFile(path, map[string]string{"category": "hr"})
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if doc.Source != path {
		t.Errorf("source = %q", doc.Source)
	}
	if !strings.Contains(doc.Content, "Remote work requires approval.") {
		t.Errorf("content = %q", doc.Content)
	}
	if doc.Metadata["filename"] != "policy.md" || doc.Metadata["category"] != "hr" {
		t.Errorf("metadata = %v", doc.Metadata)
	}
}

func Test_FromFile_HTMLTitle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html",
		`<html><head><title>Handbook</title></head><body><p>PTO needs notice.</p></body></html>`)

	doc, err := FromFile(path, nil)
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if doc.Metadata["title"] != "Handbook" {
		t.Errorf("title metadata = %q", doc.Metadata["title"])
	}
	if !strings.Contains(doc.Content, "PTO needs notice.") {
		t.Errorf("content = %q", doc.Content)
	}
}

func Test_FromFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "binary.pdf", "%PDF-1.4")

	_, err := FromFile(path, nil)
	var invalid *rag.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("want InvalidInputError for .pdf, got %v", err)
	}
}

func Test_FromFile_Missing(t *testing.T) {
	t.Parallel()

	if _, err := FromFile(filepath.Join(t.TempDir(), "absent.txt"), nil); err == nil {
		t.Fatal("missing file accepted")
	}
}

func Test_FromDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "plain text file")
	writeFile(t, dir, "b.md", "markdown file")
	writeFile(t, dir, "skip.pdf", "unsupported")
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, sub, "c.html", "<html><body><p>nested page</p></body></html>")

	docs, err := FromDirectory(dir, map[string]string{"batch": "1"})
	if err != nil {
		t.Fatalf("from directory: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("want 3 documents, got %d", len(docs))
	}
	for _, d := range docs {
		if d.Metadata["batch"] != "1" {
			t.Errorf("metadata not propagated to %s", d.Source)
		}
	}
}

func Test_FromDirectory_NotADirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "file.txt", "content")

	if _, err := FromDirectory(path, nil); err == nil {
		t.Fatal("plain file accepted as directory")
	}
	if _, err := FromDirectory(filepath.Join(dir, "absent"), nil); err == nil {
		t.Fatal("missing directory accepted")
	}
}
