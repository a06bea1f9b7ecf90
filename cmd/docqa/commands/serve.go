package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/docqa-ai/docqa/internal/embedder"
	"github.com/docqa-ai/docqa/internal/logging"
	"github.com/docqa-ai/docqa/internal/server"
	"github.com/docqa-ai/docqa/internal/tracing"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP
// server exposing the ingestion and question-answering API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP server",
		Long: `Start the docqa HTTP server on localhost.

The server exposes document ingestion (POST /api/ingest), blocking and
streaming question answering (POST /api/query, POST /api/query/stream),
knowledge base stats (GET /api/stats), per-document deletion
(DELETE /api/documents/{source}), and health/readiness/metrics endpoints.

Examples:
  docqa serve
  docqa serve --port 9090
  MODEL_PROVIDER=openai docqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing: opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = store.Close() }()

			led := buildLedger(log)
			if led != nil {
				defer func() { _ = led.Close() }()
			}

			orch, err := buildOrchestrator(emb, store, led)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pipe, err := buildPipeline(ctx, emb, store)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			srv, err := server.New(orch, pipe, store, led, &server.Config{
				Host:        host,
				Port:        port,
				Logger:      log,
				Pingers:     buildPingers(store, led),
				APIKey:      os.Getenv("DOCQA_API_KEY"),
				DefaultTopK: getEnvInt("RETRIEVAL_TOP_K", 5),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
