package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docqa-ai/docqa/internal/embedder"
	"github.com/docqa-ai/docqa/internal/ingest"
	"github.com/docqa-ai/docqa/internal/logging"
	"github.com/docqa-ai/docqa/internal/rag"
)

// NewIngestCmd constructs the `docqa ingest` command, which loads documents
// from files, directories, URLs or stdin-style raw text and indexes them
// into the vector store.
func NewIngestCmd() *cobra.Command {
	var (
		urls        []string
		files       []string
		dirs        []string
		text        string
		source      string
		followLinks bool
		maxDepth    int
		metaFlags   []string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the knowledge base",
		Long: `Load documents, split them into overlapping chunks, embed each chunk and
store the result in the vector index. Re-ingesting a source replaces its
prior chunks instead of duplicating them.

Supported sources (combinable, all repeatable except --text):
  --url   web page, optionally crawling same-host links with --follow-links
  --file  local .txt, .md or .html file
  --dir   directory, ingested recursively
  --text  raw text (requires --source as its identifier)

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: docqa)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (model, endpoint, API key)

Examples:
  docqa ingest --file docs/handbook.md
  docqa ingest --dir ./docs --meta category=policies
  docqa ingest --url https://docs.example.com/start --follow-links
  docqa ingest --text "PTO requests need 2 weeks notice." --source policy.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(urls) == 0 && len(files) == 0 && len(dirs) == 0 && text == "" {
				return fmt.Errorf("ingest: at least one of --url, --file, --dir or --text is required")
			}
			if text != "" && source == "" {
				return fmt.Errorf("ingest: --text requires --source")
			}

			meta, err := parseMetadata(metaFlags)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			var docs []rag.Document
			if text != "" {
				docs = append(docs, ingest.FromText(source, text, meta))
			}
			for _, f := range files {
				doc, err := ingest.FromFile(f, meta)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				docs = append(docs, doc)
			}
			for _, d := range dirs {
				loaded, err := ingest.FromDirectory(d, meta)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				docs = append(docs, loaded...)
			}
			if len(urls) > 0 {
				scraper := ingest.NewScraper(ingest.ScraperConfig{})
				for _, u := range urls {
					scraped, err := scraper.Scrape(ctx, u, followLinks, maxDepth)
					if err != nil {
						return fmt.Errorf("ingest: %w", err)
					}
					for i := range scraped {
						for k, v := range meta {
							scraped[i].Metadata[k] = v
						}
					}
					docs = append(docs, scraped...)
				}
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = store.Close() }()

			led := buildLedger(log)
			if led != nil {
				defer func() { _ = led.Close() }()
			}

			orch, err := buildOrchestrator(emb, store, led)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("starting ingestion", slog.Int("documents", len(docs)))

			result, err := orch.Ingest(ctx, docs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("ingested %d document(s), %d chunk(s)\n",
				result.DocumentsProcessed, result.ChunksCreated)
			for _, f := range result.Failures {
				fmt.Printf("failed: %s: %s\n", f.Source, f.Error)
			}
			if result.DocumentsProcessed == 0 && len(result.Failures) > 0 {
				return fmt.Errorf("ingest: no documents were ingested")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Web page URL to ingest (repeatable)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "File path to ingest (repeatable)")
	cmd.Flags().StringArrayVarP(&dirs, "dir", "d", nil, "Directory to ingest recursively (repeatable)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Raw text to ingest (requires --source)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source identifier for --text")
	cmd.Flags().BoolVar(&followLinks, "follow-links", false, "Crawl same-host links from each --url")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Link distance limit when crawling (0 uses the default)")
	cmd.Flags().StringArrayVarP(&metaFlags, "meta", "m", nil, "Metadata key=value attached to every document (repeatable)")

	return cmd
}
