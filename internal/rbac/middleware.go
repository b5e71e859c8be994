package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/arka-retail/arka/internal/platform/httpx"
	"github.com/arka-retail/arka/internal/shared"
)

// Middleware wires capability checks for HTTP handlers.
type Middleware struct {
	Guard  *Guard
	Logger *slog.Logger
}

// Require gates a route behind one capability. Each request is evaluated
// exactly once; handlers behind this middleware do no further policy work.
func (m Middleware) Require(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.currentUserID(r)
			if !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "login required")
				return
			}
			decision, err := m.Guard.Require(r.Context(), userID, capability)
			if err != nil || !decision.Allowed {
				if m.Logger != nil {
					m.Logger.Warn("capability denied",
						slog.Int64("user_id", userID),
						slog.String("capability", capability))
				}
				httpx.RespondError(w, m.Logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
