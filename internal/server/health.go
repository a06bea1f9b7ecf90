package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/docqa-ai/docqa/internal/logging"
)

// probeTimeout bounds each dependency probe so /api/ready answers promptly
// even when a dependency hangs instead of refusing.
const probeTimeout = 5 * time.Second

// Pinger is implemented by dependencies that can report their own
// reachability: nil from Ping means healthy. Implementations must be safe
// for concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error

	// Name labels the dependency in readiness responses ("qdrant", "ledger").
	Name() string
}

// MultiPinger folds several Pingers into one, failing on the first probe
// that fails.
type MultiPinger struct {
	pingers []Pinger
}

// NewMultiPinger constructs a MultiPinger over the given probes.
func NewMultiPinger(pingers ...Pinger) *MultiPinger {
	return &MultiPinger{pingers: pingers}
}

// Ping probes each dependency in order, returning the first failure
// prefixed with its name.
func (m *MultiPinger) Ping(ctx context.Context) error {
	for _, p := range m.pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

func (m *MultiPinger) Name() string { return "multi" }

// readyCheck is one dependency's result within a readiness response.
type readyCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body of GET /api/ready. Ready is true only when
// every check passed.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleReady answers GET /api/ready by probing every registered dependency
// under probeTimeout. All probes run even after a failure so the response
// names every broken dependency, not just the first. 503 when any fail;
// contrast with /api/health, which only proves the process is up.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{
		Ready:  true,
		Checks: make([]readyCheck, 0, len(s.pingers)),
	}

	for _, p := range s.pingers {
		resp.Checks = append(resp.Checks, s.probe(r.Context(), p))
	}
	for _, c := range resp.Checks {
		if !c.OK {
			resp.Ready = false
			break
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// probe runs a single dependency check under probeTimeout.
func (s *Server) probe(ctx context.Context, p Pinger) readyCheck {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	check := readyCheck{Name: p.Name(), OK: true}
	if err := p.Ping(probeCtx); err != nil {
		check.OK = false
		check.Error = err.Error()
		logging.FromContext(ctx).Warn("readiness probe failed",
			slog.String("dependency", p.Name()),
			slog.Any("error", err),
		)
	}
	return check
}
