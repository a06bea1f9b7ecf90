// Command docqa is the entry point for the document question-answering
// service. It provides a CLI (via Cobra) for ingesting documents and asking
// questions, plus an HTTP server exposing the same operations as a REST/SSE
// API.
package main

import (
	"fmt"
	"os"

	"github.com/docqa-ai/docqa/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
