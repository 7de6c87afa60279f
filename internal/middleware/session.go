package middleware

import (
	"context"
	"net/http"

	"github.com/fitgram/internal/storage"
)

// SessionAuth resolves the acting user from an opaque session token. The token
// comes from the X-Session-Token header, or from the session_token query
// parameter for the WebSocket handshake (browsers cannot set headers there).
// Token issuance belongs to the account service; here a token either resolves
// to a user id or the request is rejected.
func SessionAuth(store storage.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Session-Token")
			if token == "" {
				token = r.URL.Query().Get("session_token")
			}
			if token == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			userID, err := store.GetSession(r.Context(), token)
			if err != nil || userID == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
