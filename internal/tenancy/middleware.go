package tenancy

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/arka-retail/arka/internal/platform/httpx"
	"github.com/arka-retail/arka/internal/shared"
)

// Middleware attaches the resolved tenant scope to the request context.
type Middleware struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewMiddleware constructs the scope middleware.
func NewMiddleware(resolver *Resolver, logger *slog.Logger) Middleware {
	return Middleware{resolver: resolver, logger: logger}
}

// Resolve requires a logged-in session and stores the tenant scope in
// context. Requests without a resolvable scope are rejected, never widened.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
			return
		}
		userID, err := strconv.ParseInt(sess.User(), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid session principal")
			return
		}
		scope, err := m.resolver.Resolve(r.Context(), userID)
		if err != nil {
			m.logger.Warn("scope resolution failed", slog.Int64("user_id", userID), slog.Any("error", err))
			httpx.RespondError(w, m.logger, err)
			return
		}
		ctx := shared.ContextWithScope(r.Context(), scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorID extracts the logged-in user ID from the session context.
func ActorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
