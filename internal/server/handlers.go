package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/docqa-ai/docqa/internal/ingest"
	"github.com/docqa-ai/docqa/internal/logging"
	"github.com/docqa-ai/docqa/internal/rag"
)

// handleIngest handles POST /api/ingest. The request selects a source kind
// (raw text, file, directory or URL); all resulting documents are indexed
// and per-document failures are reported in the response without failing
// the whole call.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	docs, err := s.loadDocuments(r, &req)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	result, err := s.ingestor.Ingest(r.Context(), docs)
	if err != nil {
		s.metrics.ingestRequestsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.metrics.ingestRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.ingestChunksTotal.Add(float64(result.ChunksCreated))

	status := http.StatusOK
	if result.DocumentsProcessed == 0 && len(result.Failures) > 0 {
		// Nothing was indexed; surface the failure to the caller.
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// loadDocuments resolves an ingest request into documents using the
// matching loader.
func (s *Server) loadDocuments(r *http.Request, req *ingestRequest) ([]rag.Document, error) {
	switch req.Type {
	case "", "text":
		if req.Source == "" {
			return nil, rag.NewInvalidInput("source is required for text ingestion")
		}
		return []rag.Document{ingest.FromText(req.Source, req.Content, req.Metadata)}, nil

	case "file":
		if req.Path == "" {
			return nil, rag.NewInvalidInput("path is required for file ingestion")
		}
		doc, err := ingest.FromFile(req.Path, req.Metadata)
		if err != nil {
			return nil, err
		}
		return []rag.Document{doc}, nil

	case "directory":
		if req.Path == "" {
			return nil, rag.NewInvalidInput("path is required for directory ingestion")
		}
		return ingest.FromDirectory(req.Path, req.Metadata)

	case "url":
		if req.URL == "" {
			return nil, rag.NewInvalidInput("url is required for url ingestion")
		}
		docs, err := s.scraper.Scrape(r.Context(), req.URL, req.FollowLinks, req.MaxDepth)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			for k, v := range req.Metadata {
				docs[i].Metadata[k] = v
			}
		}
		return docs, nil

	default:
		return nil, rag.NewInvalidInput("unknown ingestion type %q", req.Type)
	}
}

// handleQuery handles POST /api/query: blocking retrieval-augmented
// generation returning the complete answer with citations.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	start := time.Now()
	includeSources := req.IncludeSources == nil || *req.IncludeSources

	answer, err := s.querier.Answer(r.Context(), req.Question, req.TopK, includeSources)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.metrics.queryRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcomeOK).Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, answer)
}

// handleQueryStream handles POST /api/query/stream. The answer is sent as
// SSE data frames as the model produces it, followed by an "event: sources"
// frame carrying the citation list and a terminal "event: done".
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	stream, err := s.querier.AnswerStream(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, statusForError(err), err.Error())
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	sw := &sseWriter{w: w, flusher: flusher}

	s.metrics.queryActiveStreams.Inc()
	defer s.metrics.queryActiveStreams.Dec()

	start := time.Now()
	log := logging.FromContext(r.Context())

	for {
		token, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Mid-stream failure: report it on the wire instead of
			// silently truncating the answer.
			log.Error("query stream failed", slog.Any("error", err))
			s.metrics.queryRequestsTotal.WithLabelValues(outcomeError).Inc()
			_ = sw.writeEvent("error", err.Error())
			return
		}
		if err := sw.writeData(token); err != nil {
			// Client went away; nothing more to send.
			return
		}
	}

	sources, err := json.Marshal(stream.Sources())
	if err != nil {
		log.Error("query stream: encode sources", slog.Any("error", err))
		sources = []byte("[]")
	}
	_ = sw.writeEvent("sources", string(sources))
	_ = sw.writeEvent("done", "[DONE]")

	s.metrics.queryRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcomeOK).Observe(time.Since(start).Seconds())
}

// decodeQuery parses and validates the shared query request body.
func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (*queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return nil, false
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must be positive")
		return nil, false
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.DefaultTopK
	}
	return &req, true
}

// handleStats handles GET /api/stats: ledger summary plus the live vector
// store point count.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse

	if s.ledger != nil {
		summary, err := s.ledger.Summary(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Documents = summary.Documents
		resp.TotalChunks = summary.TotalChunks
		resp.Failed = summary.Failed

		entries, err := s.ledger.Entries(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Sources = entries
	}

	count, err := s.store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	resp.VectorPoints = count

	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteDocument handles DELETE /api/documents/{source}. It removes
// every chunk belonging to the source from the vector store and forgets
// the ledger record.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	sd, ok := s.store.(sourceDeleter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "vector store does not support per-source deletion")
		return
	}
	if err := sd.DeleteBySource(r.Context(), source); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if s.ledger != nil {
		if err := s.ledger.Forget(r.Context(), source); err != nil {
			logging.FromContext(r.Context()).Warn("delete: ledger cleanup failed",
				slog.String("source", source),
				slog.Any("error", err),
			)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": source})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForError maps the domain error taxonomy to HTTP status codes.
func statusForError(err error) int {
	var invalid *rag.InvalidInputError
	var retrieval *rag.RetrievalError
	var generation *rag.GenerationError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &retrieval):
		return http.StatusServiceUnavailable
	case errors.As(err, &generation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
