package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pawpals/backend/internal/auth"
	"github.com/pawpals/backend/internal/logging"
)

// TokenVerifier resolves a bearer token into a caller identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Identity attaches the verified caller to the request context. Requests
// without a usable token continue anonymously; handlers decide whether that
// is acceptable.
func Identity(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				logging.FromContext(r.Context()).Debug("ignoring invalid bearer token", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			logger := logging.FromContext(ctx).With(slog.String("user_id", identity.UserID))
			ctx = logging.WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
