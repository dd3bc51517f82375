package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/cors"

	"github.com/marcelojr/votos-addon/internal/platform/ids"
)

const HeaderRequestID = "X-Request-ID"

type ctxKey int

const loggerKey ctxKey = iota

// RequestID reaproveita o X-Request-ID recebido quando é um ULID válido, senão gera
// outro; devolve no header e deixa no contexto um logger já marcado com request_id.
func RequestID(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if !ids.Valido(id) {
				id = ids.NewULID()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := context.WithValue(r.Context(), loggerKey, base.With("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggerDe(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// CORS libera o widget hospedado nas origens configuradas.
func CORS(origens []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origens,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", HeaderRequestID},
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: true,
	})
	return c.Handler
}
