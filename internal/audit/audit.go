// Package audit provides a structured audit logger for CLI command invocations.
// It logs command name, resolved configuration, and sanitised environment state
// so operators can trace what happened without exposing secret values.
//
// Secrets are logged as presence/absence only, never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// envVar describes one environment variable the audit entry reports. Secret
// values are collapsed to "set"/"unset" before they reach the log.
type envVar struct {
	key    string
	secret bool
}

// auditedVars is the ordered list of env vars included in every audit entry.
var auditedVars = []envVar{
	{"MODEL_PROVIDER", false},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"OPENAI_API_KEY", true},
	{"OPENAI_MODEL", false},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"AZURE_OPENAI_DEPLOYMENT", false},
	{"GOOGLE_API_KEY", true},
	{"GEMINI_MODEL", false},
	{"AWS_REGION", false},
	{"BEDROCK_MODEL_ID", false},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	{"QDRANT_HOST", false},
	{"QDRANT_PORT", false},
	{"QDRANT_COLLECTION", false},
	{"QDRANT_API_KEY", true},
	{"CHUNK_SIZE", false},
	{"CHUNK_OVERLAP", false},
	{"RETRIEVAL_TOP_K", false},
	{"DOCQA_API_KEY", true},
	{"DOCQA_LEDGER_DB", false},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
}

// secretKeys is built from auditedVars plus credentials the audit entry does
// not report but other log sites may encounter.
var secretKeys = func() map[string]bool {
	m := map[string]bool{
		"AWS_SECRET_ACCESS_KEY": true,
		"AWS_SESSION_TOKEN":     true,
	}
	for _, v := range auditedVars {
		if v.secret {
			m[v.key] = true
		}
	}
	return m
}()

// LogCommandStart emits one structured audit entry at the start of a CLI
// command: the command name, the resolved config file, and the sanitised
// environment snapshot.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditedVars)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, v := range auditedVars {
		attrs = append(attrs, slog.String(v.key, SanitiseKey(v.key, os.Getenv(v.key))))
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns "set" or "unset" for known secret keys, the value for
// non-secret keys, and "unset" for any empty value. Safe to use in log
// messages.
func SanitiseKey(key, value string) string {
	switch {
	case value == "":
		return "unset"
	case secretKeys[key]:
		return "set"
	default:
		return value
	}
}

// sanitiseConfigPath rewrites the home directory prefix to "~" and maps the
// empty path to "none".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
