// Package server provides the HTTP API server, middleware, and handlers for
// SecurePrompt.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/albertopd/secureprompt/internal/requestctx"
)

// AuthMiddleware validates X-SecurePrompt-Key or Authorization: Bearer <key>
// and sets the principal in context. apiKeys maps key -> "corp_key:role".
func AuthMiddleware(apiKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-SecurePrompt-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if key == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
				return
			}
			var assignment string
			for k, v := range apiKeys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					assignment = v
					break
				}
			}
			if assignment == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
				return
			}
			corpKey, role, ok := strings.Cut(assignment, ":")
			if !ok || corpKey == "" || role == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "API key has no valid principal assignment")
				return
			}
			p := requestctx.Principal{CorpKey: corpKey, Role: role}
			r = r.WithContext(requestctx.SetPrincipal(r.Context(), p))
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes a JSON error response. Defined here so AuthMiddleware
// can use it; handlers.go uses the same helper.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
