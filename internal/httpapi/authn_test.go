package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"sigacad.org/internal/auth"
)

func TestWithAuthRejectsMissingToken(t *testing.T) {
	_, handler := newTestAPI(t)

	rr := doJSON(t, handler, http.MethodGet, "/v1/auth/me", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header")
	}
}

func TestWithAuthRejectsGarbageToken(t *testing.T) {
	_, handler := newTestAPI(t)

	rr := doJSON(t, handler, http.MethodGet, "/v1/auth/me", nil, http.Header{
		"Authorization": []string{"Bearer aaa.bbb.ccc"},
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWithAuthSkipsPublicPaths(t *testing.T) {
	_, handler := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rr := doJSON(t, handler, http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 without credentials, got %d", path, rr.Code)
		}
	}
}

func TestRequireCapability(t *testing.T) {
	api, _ := newTestAPI(t)

	guarded := RequireCapability(api.auth, auth.ActionDelete, auth.ResourceTurmas)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	// PROFESSOR has view/edit on turmas, not delete.
	professor := &auth.Identity{ID: "123", Role: auth.RoleProfessor, Active: true}
	req := httptest.NewRequest(http.MethodDelete, "/v1/turmas/1", nil)
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), professor))
	rr := httptest.NewRecorder()
	guarded.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	admin := &auth.Identity{ID: "1", Role: auth.RoleAdmin, Active: true}
	req = httptest.NewRequest(http.MethodDelete, "/v1/turmas/1", nil)
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), admin))
	rr = httptest.NewRecorder()
	guarded.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	// No identity in context at all.
	req = httptest.NewRequest(http.MethodDelete, "/v1/turmas/1", nil)
	rr = httptest.NewRecorder()
	guarded.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
