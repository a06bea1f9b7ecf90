// Package ingest drives documents through the chunk → embed → upsert flow
// that populates the vector store. Chunk identifiers are derived
// deterministically from the document source and chunk index, so
// re-ingesting a document overwrites its prior chunks instead of
// duplicating them. The package also provides loaders that turn raw text,
// files, directories and web pages into documents.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/docqa-ai/docqa/internal/chunker"
	"github.com/docqa-ai/docqa/internal/logging"
	"github.com/docqa-ai/docqa/internal/rag"
)

// Config holds orchestrator tuning knobs. Zero values select defaults.
type Config struct {
	// ChunkSize is the maximum characters per chunk. Defaults to 1000.
	ChunkSize int

	// ChunkOverlap is the character overlap between consecutive chunks.
	// Defaults to 200.
	ChunkOverlap int

	// BatchSize caps the number of texts per embedding request.
	// Defaults to 32.
	BatchSize int

	// Workers bounds how many documents are processed concurrently.
	// Defaults to 4. Chunks of one document are always handled serially.
	Workers int
}

func (c Config) resolve() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = 200
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Recorder receives the per-document outcome of an ingestion run. The
// ledger implements it; a nil Recorder disables provenance tracking.
type Recorder interface {
	Record(ctx context.Context, source string, chunkCount int, ingestErr error) error
}

// Failure describes a document that could not be ingested.
type Failure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Result aggregates an ingestion run. Failures holds one entry per
// document that failed; the run itself still succeeds for the rest.
type Result struct {
	DocumentsProcessed int       `json:"documents_processed"`
	ChunksCreated      int       `json:"chunks_created"`
	Failures           []Failure `json:"failures,omitempty"`
}

// sourceDeleter is the optional store capability used to purge a
// document's prior chunks before re-ingestion.
type sourceDeleter interface {
	DeleteBySource(ctx context.Context, source string) error
}

// Orchestrator coordinates chunking, embedding and storage for sets of
// documents.
type Orchestrator struct {
	embedder rag.Embedder
	store    rag.VectorStore
	recorder Recorder
	cfg      Config

	// sourceLocks serializes concurrent ingestion of the same source so
	// two writers cannot interleave a document's chunks.
	mu          sync.Mutex
	sourceLocks map[string]*sync.Mutex
}

// New constructs an Orchestrator. recorder may be nil.
func New(embedder rag.Embedder, store rag.VectorStore, recorder Recorder, cfg Config) (*Orchestrator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	return &Orchestrator{
		embedder:    embedder,
		store:       store,
		recorder:    recorder,
		cfg:         cfg.resolve(),
		sourceLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Ingest processes all documents, bounded by cfg.Workers, and returns the
// aggregated result. A failing document is reported in Result.Failures
// without aborting the rest; the error return is reserved for an empty
// input set or a cancelled context.
func (o *Orchestrator) Ingest(ctx context.Context, docs []rag.Document) (*Result, error) {
	if len(docs) == 0 {
		return nil, rag.NewInvalidInput("no documents provided")
	}

	var (
		mu     sync.Mutex
		result Result
		wg     sync.WaitGroup
		sem    = make(chan struct{}, o.cfg.Workers)
	)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(doc rag.Document) {
			defer wg.Done()
			defer func() { <-sem }()

			created, err := o.ingestOne(ctx, doc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, Failure{
					Source: doc.Source,
					Error:  err.Error(),
				})
				return
			}
			result.DocumentsProcessed++
			result.ChunksCreated += created
		}(doc)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return &result, err
	}
	return &result, nil
}

// ingestOne chunks, embeds and upserts a single document, returning the
// number of chunks written.
func (o *Orchestrator) ingestOne(ctx context.Context, doc rag.Document) (int, error) {
	if strings.TrimSpace(doc.Content) == "" {
		err := rag.NewInvalidInput("document %q has empty content", doc.Source)
		o.record(ctx, doc.Source, 0, err)
		return 0, err
	}
	if doc.Source == "" {
		err := rag.NewInvalidInput("document has no source identifier")
		o.record(ctx, doc.Source, 0, err)
		return 0, err
	}

	lock := o.lockSource(doc.Source)
	lock.Lock()
	defer lock.Unlock()

	log := logging.FromContext(ctx)

	chunks := chunker.Chunk(doc, chunker.Config{
		Size:    o.cfg.ChunkSize,
		Overlap: o.cfg.ChunkOverlap,
	})
	for i := range chunks {
		chunks[i].ID = chunkID(chunks[i].Source, chunks[i].Index)
	}
	log.Debug("ingest: chunked document",
		slog.String("source", doc.Source),
		slog.Int("chunks", len(chunks)),
	)

	// Embed every batch before touching the store, so an embedder failure
	// during re-ingestion leaves the document's prior chunks intact.
	var (
		batches    [][]rag.Chunk
		embeddings [][][]float32
	)
	for start := 0; start < len(chunks); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := o.embedder.Embed(ctx, texts)
		if err != nil {
			err = fmt.Errorf("ingest: embed %s: %w", doc.Source, err)
			o.record(ctx, doc.Source, 0, err)
			return 0, err
		}
		batches = append(batches, batch)
		embeddings = append(embeddings, vectors)
	}

	// Purge prior chunks so a shrinking document leaves no stale tail.
	if sd, ok := o.store.(sourceDeleter); ok {
		if err := sd.DeleteBySource(ctx, doc.Source); err != nil {
			err = fmt.Errorf("ingest: purge %s: %w", doc.Source, err)
			o.record(ctx, doc.Source, 0, err)
			return 0, err
		}
	}

	for i, batch := range batches {
		if err := o.store.Upsert(ctx, batch, embeddings[i]); err != nil {
			err = fmt.Errorf("ingest: upsert %s: %w", doc.Source, err)
			o.record(ctx, doc.Source, 0, err)
			return 0, err
		}
	}

	o.record(ctx, doc.Source, len(chunks), nil)
	log.Info("ingest: document stored",
		slog.String("source", doc.Source),
		slog.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

func (o *Orchestrator) lockSource(source string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.sourceLocks[source]
	if !ok {
		l = &sync.Mutex{}
		o.sourceLocks[source] = l
	}
	return l
}

func (o *Orchestrator) record(ctx context.Context, source string, chunkCount int, ingestErr error) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, source, chunkCount, ingestErr); err != nil {
		logging.FromContext(ctx).Warn("ingest: ledger record failed",
			slog.String("source", source),
			slog.Any("error", err),
		)
	}
}

// chunkID derives a stable UUID for a chunk from its source and index, so
// the same chunk position always maps to the same point in the store.
func chunkID(source string, index int) string {
	name := fmt.Sprintf("%s#%d", source, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
