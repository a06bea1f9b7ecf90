package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/docqa-ai/docqa/internal/embedder"
	"github.com/docqa-ai/docqa/internal/generator"
	"github.com/docqa-ai/docqa/internal/ingest"
	"github.com/docqa-ai/docqa/internal/ledger"
	"github.com/docqa-ai/docqa/internal/pipeline"
	"github.com/docqa-ai/docqa/internal/provider"
	"github.com/docqa-ai/docqa/internal/rag"
	"github.com/docqa-ai/docqa/internal/server"
)

// buildStore connects to the configured vector store. VECTOR_STORE=memory
// selects the in-process store, useful for local experiments where no
// Qdrant instance is running (the index is lost on exit).
func buildStore(ctx context.Context) (rag.VectorStore, error) {
	if os.Getenv("VECTOR_STORE") == "memory" {
		return rag.NewMemoryStore(), nil
	}

	embBackend := embedder.BackendFromEnv()
	vectorSize := uint64(getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embBackend))) //nolint:gosec // dimensions are bounded

	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "docqa"),
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return store, nil
}

// buildLedger opens the ingestion provenance database. DOCQA_LEDGER_DB
// overrides the default path (~/.docqa/ledger.db); "disabled" turns the
// ledger off. Failure to open is not fatal; the ledger degrades to nil.
func buildLedger(log *slog.Logger) *ledger.Store {
	dbPath := os.Getenv("DOCQA_LEDGER_DB")
	if dbPath == "disabled" {
		log.Info("ledger: disabled via DOCQA_LEDGER_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = ledger.DefaultDBPath()
		if err != nil {
			log.Warn("ledger: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}

	led, err := ledger.Open(dbPath)
	if err != nil {
		log.Warn("ledger: failed to open, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("ledger: opened", slog.String("path", dbPath))
	return led
}

// ingestConfigFromEnv assembles the orchestrator configuration.
func ingestConfigFromEnv() ingest.Config {
	return ingest.Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		BatchSize:    getEnvInt("INGEST_BATCH_SIZE", 32),
		Workers:      getEnvInt("INGEST_WORKERS", 4),
	}
}

// buildOrchestrator wires the ingestion orchestrator from its collaborators.
// led may be nil.
func buildOrchestrator(emb rag.Embedder, store rag.VectorStore, led *ledger.Store) (*ingest.Orchestrator, error) {
	var recorder ingest.Recorder
	if led != nil {
		recorder = led
	}
	return ingest.New(emb, store, recorder, ingestConfigFromEnv())
}

// buildPipeline wires the query pipeline: retriever over the store plus a
// generator over the configured chat model.
func buildPipeline(ctx context.Context, emb rag.Embedder, store rag.VectorStore) (*pipeline.Pipeline, error) {
	topK := getEnvInt("RETRIEVAL_TOP_K", 5)

	retriever, err := rag.NewRetriever(emb, store, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	chatModel, err := provider.New(ctx, provider.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	gen, err := generator.New(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	return pipeline.New(retriever, gen, pipeline.Config{
		DefaultTopK:     topK,
		MaxContextChars: getEnvInt("MAX_CONTEXT_CHARS", 8000),
	})
}

// buildPingers assembles the readiness probes for /api/ready based on which
// dependencies are actually in use.
func buildPingers(store rag.VectorStore, led *ledger.Store) []server.Pinger {
	var pingers []server.Pinger

	if qs, ok := store.(*rag.QdrantStore); ok {
		pingers = append(pingers, server.NewQdrantPinger(qs.Client()))
	}

	// Ollama serves both embeddings and generation in the default setup;
	// /api/tags answers without loading a model, so the probe is free.
	if embedder.BackendFromEnv() == "ollama" || getEnvOrDefault("MODEL_PROVIDER", "ollama") == "ollama" {
		host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		pingers = append(pingers, server.NewHTTPPinger("ollama", strings.TrimRight(host, "/")+"/api/tags"))
	}

	if led != nil {
		pingers = append(pingers, server.PingerFunc{Label: "ledger", Fn: led.Ping})
	}

	return pingers
}

// parseMetadata converts repeated "key=value" flags into a metadata map.
func parseMetadata(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", kv)
		}
		meta[k] = v
	}
	return meta, nil
}

// getEnvOrDefault returns the env var value or a fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or a fallback when unset or
// malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
