package middleware

import (
	"net/http"
	"strings"

	apperrors "canchas/pkg/errors"
	"canchas/pkg/identity"
	"canchas/pkg/logger"
)

// Authentication resolves the bearer token into an identity on the request
// context. Requests without a token continue anonymously; the services decide
// which operations need a caller. A token that fails validation is rejected.
func Authentication(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, apperrors.Unauthorized("Authorization header must use the Bearer scheme"))
				return
			}

			id, err := identity.ParseValidate(secret, token)
			if err != nil {
				log.Warn("Rejected access token",
					"request_id", requestID(r),
					"path", r.URL.Path,
					"error", err,
				)
				writeError(w, apperrors.Unauthorized("Invalid or expired access token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}
