// Package server implements the HTTP server that exposes document
// ingestion and retrieval-augmented question answering via a REST/SSE API.
// The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docqa-ai/docqa/internal/ingest"
	"github.com/docqa-ai/docqa/internal/ledger"
	"github.com/docqa-ai/docqa/internal/logging"
	"github.com/docqa-ai/docqa/internal/pipeline"
	"github.com/docqa-ai/docqa/internal/rag"
)

// New constructs a Server from the provided collaborators and config.
// led may be nil, in which case stats fall back to the vector store count
// and per-source deletes skip ledger cleanup.
func New(orch *ingest.Orchestrator, pipe *pipeline.Pipeline, store rag.VectorStore, led *ledger.Store, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("server: ingest orchestrator must not be nil")
	}
	if pipe == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("server: vector store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		ingestor: orch,
		querier:  pipe,
		store:    store,
		scraper:  ingest.NewScraper(ingest.ScraperConfig{}),
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
	}
	if led != nil {
		s.ledger = led
	}

	reg := prometheus.NewRegistry()
	s.metrics = newServerMetrics(reg)

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: DOCQA_API_KEY not set; API authentication is disabled")
	}

	mux := http.NewServeMux()

	// Unauthenticated operational endpoints.
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Protected API surface.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h)))
	}
	mux.Handle("POST /api/ingest", protected("ingest", s.handleIngest))
	mux.Handle("POST /api/query", protected("query", s.handleQuery))
	mux.Handle("POST /api/query/stream", protected("query_stream", s.handleQueryStream))
	mux.Handle("GET /api/stats", protected("stats", s.handleStats))
	mux.Handle("DELETE /api/documents/{source...}", protected("delete_document", s.handleDeleteDocument))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data frames.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// writeData formats text as one or more SSE data lines and flushes to the
// client. Splitting on newlines keeps multi-line chunks inside one frame; a
// trailing newline becomes an empty final data line, so a conforming SSE
// decoder reconstructs the exact bytes.
func (s *sseWriter) writeData(text string) error {
	var buf strings.Builder
	for _, line := range strings.Split(text, "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err := fmt.Fprint(s.w, buf.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// writeEvent emits a named SSE event with a single data line.
func (s *sseWriter) writeEvent(event, data string) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
