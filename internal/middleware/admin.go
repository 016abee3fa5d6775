package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/community-hub/internal/auth"
)

// AdminChecker looks up whether a user holds the admin flag.
// *service.ModerationService implements it.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAdmin lets a request through only if the session attached by
// auth.RequireAuth belongs to an admin. It must be mounted after RequireAuth.
//
//	r.With(auth.RequireAuth(accounts), middleware.RequireAdmin(moderation, logger)).
//	    Get("/admin/...", handler)
func RequireAdmin(admins AdminChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := auth.SessionFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			isAdmin, err := admins.IsAdmin(r.Context(), sess.UserID)
			if err != nil {
				logger.Error("admin lookup failed",
					slog.String("user_id", sess.UserID),
					slog.String("error", err.Error()),
				)
				writeJSONError(w, http.StatusBadGateway, "document_read_error", "could not verify admin status")
				return
			}
			if !isAdmin {
				logger.Warn("admin route refused",
					slog.String("user_id", sess.UserID),
					slog.String("path", r.URL.Path),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSONError matches the handler package's error shape without
// importing it.
func writeJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorType, Message: message})
}

// errorBody has the same JSON shape as handler.ErrorResponse.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
