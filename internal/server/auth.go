package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"robotctl/internal/auth"
)

type subjectKey struct{}

func withSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

func subjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok && s != ""
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware gates every protected route on a valid bearer token.
// Health, login, metrics and the docs pages stay open; everything else
// short-circuits 401 before any store access.
func newAuthMiddleware(basePath string, g gateway) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join("/", basePath, "health"):       true,
		path.Join("/", basePath, "login"):        true,
		path.Join("/", basePath, "metrics"):      true,
		path.Join("/", basePath, "openapi.json"): true,
		"/docs": true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if open[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				g.metrics.authRejected.Inc()
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "authentication required"))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				g.metrics.authRejected.Inc()
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid token"))
				return
			}
			subject, err := g.authenticator.Authenticate(token)
			if err != nil {
				g.metrics.authRejected.Inc()
				msg := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "token expired"
				}
				respondStatusError(w, newAPIError(http.StatusUnauthorized, msg))
				return
			}
			next.ServeHTTP(w, req.WithContext(withSubject(req.Context(), subject)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
