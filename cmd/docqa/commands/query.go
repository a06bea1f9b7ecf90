package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docqa-ai/docqa/internal/embedder"
	"github.com/docqa-ai/docqa/internal/logging"
	"github.com/docqa-ai/docqa/internal/pipeline"
)

// NewQueryCmd constructs the `docqa query` command, which answers a single
// question against the knowledge base.
func NewQueryCmd() *cobra.Command {
	var topK int
	var noSources bool
	var streamOut bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question against the knowledge base",
		Long: `Retrieve the most relevant chunks for a question, assemble a grounded
prompt, and print the model's answer together with the sources used.

Examples:
  docqa query "How much notice is needed for PTO?"
  docqa query --top-k 3 --stream "What is the remote work policy?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			question := strings.Join(args, " ")

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("query: failed to initialise embedder: %w", err)
			}

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer func() { _ = store.Close() }()

			pipe, err := buildPipeline(ctx, emb, store)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if streamOut {
				stream, err := pipe.AnswerStream(ctx, question, topK)
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}
				defer stream.Close()

				for {
					token, err := stream.Recv()
					if err != nil {
						if errors.Is(err, io.EOF) {
							break
						}
						fmt.Fprintln(os.Stdout)
						return fmt.Errorf("query: %w", err)
					}
					fmt.Print(token)
				}
				fmt.Println()

				if !noSources {
					printSources(stream.Sources())
				}
				return nil
			}

			answer, err := pipe.Answer(ctx, question, topK, !noSources)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			fmt.Println(answer.Text)
			if !noSources {
				printSources(answer.Sources)
			}
			fmt.Printf("\n(%d ms)\n", answer.QueryTimeMS)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: server default)")
	cmd.Flags().BoolVar(&noSources, "no-sources", false, "Suppress the source citation list")
	cmd.Flags().BoolVar(&streamOut, "stream", false, "Print the answer incrementally as it is generated")

	return cmd
}

// printSources writes the citation list in a compact human-readable form.
func printSources(sources []pipeline.Citation) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, c := range sources {
		fmt.Printf("  %d. %s (score %.3f)\n", i+1, c.Source, c.Score)
	}
}
