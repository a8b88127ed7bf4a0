package middleware

import (
	"context"
	"net/http"

	"labbook/pkg/model"
	"labbook/pkg/sanitizer"
)

const ActorKey contextKey = "actor"

// Headers set by the upstream session/role verification gateway. The
// engine trusts them; it enforces only capability and cutoff rules.
const (
	HeaderActorID    = "X-Actor-Id"
	HeaderActorEmail = "X-Actor-Email"
	HeaderActorRole  = "X-Actor-Role"
)

// ActorContext extracts the request-scoped actor from the gateway
// headers. Requests without a verified identity are rejected before
// any handler runs.
func ActorContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := sanitizer.NormalizeEmail(r.Header.Get(HeaderActorEmail))
			role, ok := model.ParseRole(r.Header.Get(HeaderActorRole))

			if email == "" || !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Missing or invalid actor identity"}`))
				return
			}

			actor := model.Actor{
				ID:    r.Header.Get(HeaderActorID),
				Email: email,
				Role:  role,
			}

			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the actor placed by ActorContext. The second
// result is false on requests that bypassed the middleware (health
// endpoints, tests).
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(model.Actor)
	return actor, ok
}
