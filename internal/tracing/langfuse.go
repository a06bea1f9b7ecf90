// Package tracing wires optional Langfuse tracing into the eino callback
// chain. Tracing is enabled purely by environment: when the Langfuse keys
// are absent the service runs untraced with no behavioural difference.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is where a local Langfuse instance listens.
const defaultHost = "http://localhost:3000"

// Setup builds the Langfuse callback handler when both LANGFUSE_PUBLIC_KEY
// and LANGFUSE_SECRET_KEY are present. The returned flush function must run
// before process exit or buffered traces are lost. When the keys are missing
// the third return is false and the other two are nil.
func Setup() (callbacks.Handler, func(), bool) {
	pub := os.Getenv("LANGFUSE_PUBLIC_KEY")
	sec := os.Getenv("LANGFUSE_SECRET_KEY")
	if pub == "" || sec == "" {
		return nil, nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flush := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: pub,
		SecretKey: sec,
	})

	return handler, flush, true
}
