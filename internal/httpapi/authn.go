package httpapi

import (
	"net/http"

	"sigacad.org/internal/auth"
	"sigacad.org/internal/obs"
)

const authHeader = "Authorization"

// publicPaths skip the authentication gate; everything else requires a valid
// bearer token.
var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/auth/strength",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.auth.Authenticate(r.Context(), r.Header.Get(authHeader))
		if err != nil {
			obs.RecordTokenVerification("denied")
			handleAuthError(w, r, err)
			return
		}
		obs.RecordTokenVerification("ok")

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithToken(ctx, auth.ExtractBearerToken(r.Header.Get(authHeader)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCapability guards a downstream handler with a capability check.
// Meant for the CRUD surfaces that consume this subsystem.
func RequireCapability(svc *auth.Service, action auth.Action, resource auth.Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				handleAuthError(w, r, auth.ErrMissingCredentials)
				return
			}
			if err := svc.Authorize(identity, action, resource); err != nil {
				handleAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
