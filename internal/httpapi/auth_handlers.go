package httpapi

import (
	"net/http"
	"strings"

	"sigacad.org/internal/audit"
	"sigacad.org/internal/auth"
	"sigacad.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type strengthRequest struct {
	Password string `json:"password"`
}

type identityResponse struct {
	ID     string    `json:"id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   auth.Role `json:"role"`
	Active bool      `json:"active"`
}

type sessionResponse struct {
	Identity identityResponse `json:"identity"`
	Tokens   auth.TokenPair   `json:"tokens"`
}

func toIdentityResponse(identity *auth.Identity) identityResponse {
	return identityResponse{
		ID:     identity.ID,
		Email:  identity.Email,
		Name:   identity.Name,
		Role:   identity.Role,
		Active: identity.Active,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, identity, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.RecordLogin("denied")
		_ = audit.LogEvent(r.Context(), "auth.login.denied", map[string]any{
			"email": strings.TrimSpace(strings.ToLower(req.Email)),
		})
		handleAuthError(w, r, err)
		return
	}
	obs.RecordLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"identity_id": identity.ID,
		"role":        identity.Role,
	})
	writeJSON(w, http.StatusOK, sessionResponse{
		Identity: toIdentityResponse(identity),
		Tokens:   pair,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}
	pair, identity, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"identity_id": identity.ID,
	})
	writeJSON(w, http.StatusOK, sessionResponse{
		Identity: toIdentityResponse(identity),
		Tokens:   pair,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrMissingCredentials)
		return
	}
	// Body is optional: a client may also hand over its refresh token so
	// both halves of the pair die together.
	var req logoutRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := a.auth.Logout(r.Context(), token, req.RefreshToken); err != nil {
		handleAuthError(w, r, err)
		return
	}
	obs.RecordRevocation()
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handlePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrMissingCredentials)
		return
	}
	token, _ := auth.TokenFromContext(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), identity, token, req.CurrentPassword, req.NewPassword); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.changed", map[string]any{
		"identity_id": identity.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_changed"})
}

func (a *API) handleStrength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req strengthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.auth.Passwords().Strength(req.Password))
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrMissingCredentials)
		return
	}
	capabilities := make(map[auth.Resource]map[auth.Action]bool)
	for _, resource := range []auth.Resource{
		auth.ResourceAlunos, auth.ResourceProfessores, auth.ResourceCursos,
		auth.ResourceTurmas, auth.ResourceMatriculas, auth.ResourceNotas,
		auth.ResourceUsuarios, auth.ResourceRelatorios,
	} {
		capabilities[resource] = auth.AllActions(resource, identity.Role)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":     toIdentityResponse(identity),
		"capabilities": capabilities,
	})
}
