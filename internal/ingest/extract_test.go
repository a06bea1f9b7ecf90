package ingest

import (
	"strings"
	"testing"
)

func Test_MarkdownText(t *testing.T) {
	t.Parallel()

	src := []byte("# Policy\n\nRemote work **requires** manager approval.\n\n- PTO needs notice\n- Badge in daily\n")
	got := markdownText(src)

	if !strings.Contains(got, "Policy") {
		t.Error("heading text lost")
	}
	if !strings.Contains(got, "Remote work **requires** manager approval.") &&
		!strings.Contains(got, "Remote work requires manager approval.") {
		t.Errorf("paragraph text lost: %q", got)
	}
	if !strings.Contains(got, "PTO needs notice") {
		t.Errorf("list item text lost: %q", got)
	}
	if strings.Contains(got, "# Policy") {
		t.Errorf("markdown syntax leaked into plain text: %q", got)
	}
}

func Test_MarkdownText_Empty(t *testing.T) {
	t.Parallel()

	if got := markdownText(nil); got != "" {
		t.Errorf("want empty output for empty input, got %q", got)
	}
}

func Test_ParseHTML(t *testing.T) {
	t.Parallel()

	src := []byte(`<!doctype html>
<html>
<head><title>Company Handbook</title><style>p { color: red }</style></head>
<body>
  <nav><a href="/home">Home</a></nav>
  <h1>Time Off</h1>
  <p>PTO requests need <b>2 weeks</b> notice.</p>
  <p>See the <a href="/policy#remote">remote policy</a> for details.</p>
  <script>track();</script>
  <footer>Copyright</footer>
</body>
</html>`)

	page, err := parseHTML(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if page.Title != "Company Handbook" {
		t.Errorf("title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "Time Off") {
		t.Error("heading lost")
	}
	if !strings.Contains(page.Text, "PTO requests need 2 weeks notice.") {
		t.Errorf("paragraph text mangled: %q", page.Text)
	}
	if strings.Contains(page.Text, "color: red") || strings.Contains(page.Text, "track()") {
		t.Errorf("style or script leaked into text: %q", page.Text)
	}
	if strings.Contains(page.Text, "Copyright") || strings.Contains(page.Text, "Home") {
		t.Errorf("chrome elements leaked into text: %q", page.Text)
	}
	// Links from nav are skipped with the nav element; body links survive.
	if len(page.Links) != 1 || page.Links[0] != "/policy#remote" {
		t.Errorf("links = %v", page.Links)
	}
}

func Test_SameHostLinks(t *testing.T) {
	t.Parallel()

	base := mustParseURL(t, "https://example.com/docs/")
	hrefs := []string{
		"/docs/a",
		"b.html",
		"https://example.com/docs/c#section",
		"https://example.com/docs/c#other",
		"https://other.com/external",
		"mailto:hr@example.com",
	}
	got := sameHostLinks(base, "https://example.com/docs/", hrefs)

	want := []string{
		"https://example.com/docs/a",
		"https://example.com/docs/b.html",
		"https://example.com/docs/c",
	}
	if len(got) != len(want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("link %d = %q, want %q", i, got[i], want[i])
		}
	}
}
