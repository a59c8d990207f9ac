package http

import (
	"context"
	"net/http"
	"time"
)

// Timeout returns middleware that puts a deadline on the request context.
// Handlers observe it through their blocking calls and answer with 504 when
// it expires; nothing is written on their behalf.
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if duration <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
