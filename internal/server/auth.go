package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docqa-ai/docqa/internal/logging"
)

// authMiddleware guards a handler with static Bearer token auth. An empty
// apiKey disables the check entirely (the server logs one startup warning
// in that case, not one per request).
//
// Callers authenticate with:
//
//	Authorization: Bearer <apiKey>
//
// Rejections carry a WWW-Authenticate challenge. The presented token value
// never reaches the logs, only whether one was present.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			logging.FromContext(r.Context()).Warn("auth: missing Authorization header",
				slog.String("path", r.URL.Path),
			)
			reject(w, `Bearer realm="docqa"`, "authorization required")
		case subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1:
			logging.FromContext(r.Context()).Warn("auth: invalid token",
				slog.String("path", r.URL.Path),
				slog.Bool("token_present", true),
			)
			reject(w, `Bearer realm="docqa" error="invalid_token"`, "invalid token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// reject writes a 401 with the given WWW-Authenticate challenge.
func reject(w http.ResponseWriter, challenge, msg string) {
	w.Header().Set("WWW-Authenticate", challenge)
	http.Error(w, msg, http.StatusUnauthorized)
}

// bearerToken pulls the token out of an "Authorization: Bearer <token>"
// header. The scheme match is case-insensitive per RFC 7235; anything
// malformed or non-Bearer yields the empty string.
func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
