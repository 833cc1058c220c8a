package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/expensedesk/expensedesk/internal/observability"
)

type identityContextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}

// Middleware resolves the caller from X-API-Key or a bearer token and
// rejects the request with a 401 envelope when neither validates.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, scheme, err := credentialFromRequest(r)
			if err != nil {
				writeUnauthorized(w, r, "MALFORMED_CREDENTIALS", err.Error())
				return
			}
			if credential == "" {
				writeUnauthorized(w, r, "UNAUTHORIZED", "missing API key or bearer token")
				return
			}

			identity, ok := validator.Validate(r.Context(), credential)
			if !ok {
				if logger != nil {
					logger.LogAttrs(r.Context(), slog.LevelWarn, "authentication failed",
						slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
						slog.String("scheme", scheme),
						slog.String("route", r.Pattern),
					)
				}
				writeUnauthorized(w, r, "UNAUTHORIZED", "invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

type credentialError string

func (e credentialError) Error() string { return string(e) }

func credentialFromRequest(r *http.Request) (credential, scheme string, err error) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, "api_key", nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", "", nil
	}
	kind, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(kind, "Bearer") {
		return "", "", credentialError("authorization header must use the Bearer scheme")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", credentialError("bearer token is empty")
	}
	return value, "bearer", nil
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="expensedesk"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(struct {
		Success     bool   `json:"success"`
		Data        any    `json:"data"`
		Error       string `json:"error"`
		ErrorSource string `json:"error_source"`
		ErrorCode   string `json:"error_code"`
		Retryable   bool   `json:"retryable"`
		TraceID     string `json:"trace_id"`
	}{
		Error:       message,
		ErrorSource: "auth",
		ErrorCode:   code,
		TraceID:     observability.TraceIDFromContext(r.Context()),
	})
}
