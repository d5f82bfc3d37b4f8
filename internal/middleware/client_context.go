package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const clientKey ctxKey = "client_id"

// ClientHeader identifies the browser tab or device behind a request. It is
// informational only: there is no authentication.
const ClientHeader = "X-Client-ID"

// ClientContext guarda el identificador de cliente (si viene) en el contexto.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ClientHeader))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), clientKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetClientID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(clientKey).(string)
	return v, ok && v != ""
}
