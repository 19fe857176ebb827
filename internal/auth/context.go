package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const actorKey contextKey = "actor"

// anonymousActor is reported when no identity reached the context.
const anonymousActor = "unknown"

// ContextWithActor returns a new context carrying the authenticated actor
// name, used for import attribution.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the authenticated actor name, or "unknown" when
// the request carried none.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return anonymousActor
	}
	actor, ok := ctx.Value(actorKey).(string)
	if !ok || actor == "" {
		return anonymousActor
	}
	return actor
}

// TokenMiddleware guards the handler chain with a shared admin token. When
// token is empty the middleware is a pass-through, which keeps local
// development friction-free. The actor name from X-Actor is attached to the
// context either way.
func TokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				presented := bearerToken(r)
				if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
			}

			if actor := strings.TrimSpace(r.Header.Get("X-Actor")); actor != "" {
				r = r.WithContext(ContextWithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
