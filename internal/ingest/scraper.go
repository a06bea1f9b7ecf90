package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docqa-ai/docqa/internal/logging"
	"github.com/docqa-ai/docqa/internal/rag"
)

// minPageChars filters out near-empty pages (redirect stubs, cookie walls).
const minPageChars = 50

// defaultMaxDepth bounds how many links away from the start page the
// crawler follows when the caller does not set a limit.
const defaultMaxDepth = 2

// ScraperConfig tunes the web scraper.
type ScraperConfig struct {
	// MaxPages caps the number of pages fetched per Scrape call.
	// Defaults to 100.
	MaxPages int

	// RequestDelay is the pause between consecutive fetches.
	// Defaults to 500ms.
	RequestDelay time.Duration

	// HTTPTimeout is the per-request timeout. Defaults to 30s.
	HTTPTimeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// Scraper fetches web pages and turns them into documents. When link
// following is on, it crawls breadth-first but never leaves the starting
// page's host.
type Scraper struct {
	cfg    ScraperConfig
	client *http.Client
}

// NewScraper applies defaults and builds a Scraper.
func NewScraper(cfg ScraperConfig) *Scraper {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "docqa/1.0 (document ingestion)"
	}
	return &Scraper{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// crawlTarget is a queued URL and its link distance from the start page.
type crawlTarget struct {
	url   string
	depth int
}

// Scrape fetches startURL and, when followLinks is set, crawls same-host
// links breadth-first until MaxPages is reached or every queued page sits
// more than maxDepth links from the start (maxDepth <= 0 selects
// defaultMaxDepth). Pages that fail to fetch or hold almost no text are
// skipped, not fatal; an error is returned only when the starting URL
// itself is unusable.
func (s *Scraper) Scrape(ctx context.Context, startURL string, followLinks bool, maxDepth int) ([]rag.Document, error) {
	base, err := url.Parse(startURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, rag.NewInvalidInput("invalid URL %q", startURL)
	}
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	log := logging.FromContext(ctx)

	var docs []rag.Document
	queue := []crawlTarget{{url: startURL}}
	visited := make(map[string]bool)

	for len(queue) > 0 && len(docs) < s.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return docs, err
		}

		target := queue[0]
		queue = queue[1:]
		if visited[target.url] {
			continue
		}
		visited[target.url] = true

		page, err := s.fetchPage(ctx, target.url)
		if err != nil {
			if target.url == startURL {
				return nil, fmt.Errorf("ingest: fetch %s: %w", target.url, err)
			}
			log.Warn("scrape: skipping page", slog.String("url", target.url), slog.Any("error", err))
			continue
		}

		if len(page.Text) >= minPageChars {
			meta := map[string]string{"type": "webpage"}
			if page.Title != "" {
				meta["title"] = page.Title
			}
			docs = append(docs, rag.Document{
				Source:   target.url,
				Content:  page.Text,
				Metadata: meta,
			})
		}

		if followLinks && target.depth < maxDepth {
			for _, link := range sameHostLinks(base, target.url, page.Links) {
				if !visited[link] {
					queue = append(queue, crawlTarget{url: link, depth: target.depth + 1})
				}
			}
		}

		if len(queue) > 0 {
			select {
			case <-ctx.Done():
				return docs, ctx.Err()
			case <-time.After(s.cfg.RequestDelay):
			}
		}
	}

	log.Info("scrape: complete",
		slog.Int("documents", len(docs)),
		slog.Int("pages_visited", len(visited)),
	)
	return docs, nil
}

func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (*htmlPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html, text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "text/plain") {
		return &htmlPage{Text: strings.TrimSpace(string(body))}, nil
	}
	return parseHTML(body)
}

// sameHostLinks resolves hrefs against the page URL and keeps only
// absolute http(s) links on the crawl's starting host, with fragments
// stripped so each page is visited once.
func sameHostLinks(base *url.URL, pageURL string, hrefs []string) []string {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool, len(hrefs))
	var out []string
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := page.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		if abs.Host != base.Host {
			continue
		}
		abs.Fragment = ""
		clean := abs.String()
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}
	return out
}
