package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/docqa-ai/docqa/internal/ingest"
	"github.com/docqa-ai/docqa/internal/ledger"
	"github.com/docqa-ai/docqa/internal/pipeline"
	"github.com/docqa-ai/docqa/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// DefaultTopK is used when a query omits top_k. Defaults to 5 if zero.
	DefaultTopK int
}

// ingestor accepts documents for indexing. *ingest.Orchestrator satisfies
// it; tests inject a fake.
type ingestor interface {
	Ingest(ctx context.Context, docs []rag.Document) (*ingest.Result, error)
}

// querier answers questions. *pipeline.Pipeline satisfies it; tests inject
// a fake.
type querier interface {
	Answer(ctx context.Context, question string, topK int, includeSources bool) (*pipeline.Answer, error)
	AnswerStream(ctx context.Context, question string, topK int) (pipeline.AnswerStream, error)
}

// documentLedger exposes the provenance records used by the stats and
// delete endpoints. *ledger.Store satisfies it.
type documentLedger interface {
	Summary(ctx context.Context) (*ledger.Stats, error)
	Entries(ctx context.Context) ([]ledger.Entry, error)
	Forget(ctx context.Context, source string) error
}

// sourceDeleter is the optional vector store capability behind
// DELETE /api/documents/{source}.
type sourceDeleter interface {
	DeleteBySource(ctx context.Context, source string) error
}

// Server is the HTTP server exposing the question-answering API.
type Server struct {
	// ingestor handles POST /api/ingest.
	ingestor ingestor
	// querier handles the query endpoints.
	querier querier
	// store is the vector index, used for counts and per-source deletes.
	store rag.VectorStore
	// ledger holds ingestion provenance; nil disables stats detail.
	ledger documentLedger
	// scraper fetches web pages for URL ingestion.
	scraper *ingest.Scraper
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Type selects the source kind: "text", "file", "directory" or "url".
	Type string `json:"type"`
	// Source identifies a raw text document. Required for type "text".
	Source string `json:"source"`
	// Content is the raw text for type "text".
	Content string `json:"content"`
	// Path is the file or directory path for types "file" and "directory".
	Path string `json:"path"`
	// URL is the page address for type "url".
	URL string `json:"url"`
	// FollowLinks enables same-host crawling for type "url".
	FollowLinks bool `json:"follow_links"`

	// MaxDepth bounds how many links away from the starting URL the
	// crawler follows. Zero selects the scraper default.
	MaxDepth int `json:"max_depth"`
	// Metadata is attached to every document produced by this request.
	Metadata map[string]string `json:"metadata"`
}

// queryRequest is the JSON body for POST /api/query and /api/query/stream.
type queryRequest struct {
	// Question is the natural language question.
	Question string `json:"question"`
	// TopK overrides the number of chunks retrieved. Zero selects the
	// server default.
	TopK int `json:"top_k"`
	// IncludeSources controls citation construction. Defaults to true.
	IncludeSources *bool `json:"include_sources"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	// Documents is the number of sources in the ledger.
	Documents int `json:"documents"`
	// TotalChunks is the sum of chunk counts over successful ingestions.
	TotalChunks int `json:"total_chunks"`
	// Failed is the number of sources whose last ingestion failed.
	Failed int `json:"failed"`
	// VectorPoints is the live point count reported by the vector store.
	VectorPoints uint64 `json:"vector_points"`
	// Sources lists the per-document ledger entries, newest first.
	Sources []ledger.Entry `json:"sources,omitempty"`
}

// errorResponse is the JSON error body returned by all endpoints.
type errorResponse struct {
	Error string `json:"error"`
}
