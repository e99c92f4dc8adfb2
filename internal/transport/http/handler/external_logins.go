package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-auth-core/internal/application/extlogin"
	"github.com/go-auth-core/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// ExternalLoginHandler handles provider identity endpoints.
type ExternalLoginHandler struct {
	svc extlogin.Service
}

func NewExternalLoginHandler(svc extlogin.Service) *ExternalLoginHandler {
	return &ExternalLoginHandler{svc: svc}
}

func (h *ExternalLoginHandler) LoginWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "id_token required")
		return
	}
	result, err := h.svc.LoginWithGoogle(r.Context(), req.IDToken, r.RemoteAddr, r.UserAgent())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		AccessToken:  result.Bearer,
		RefreshToken: result.RefreshToken,
		Session:      result.Session,
		Account:      result.Account,
	})
}

func (h *ExternalLoginHandler) Link(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Provider    string `json:"provider"`
		ProviderKey string `json:"provider_key"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Link(r.Context(), claims.AccountID, req.Provider, req.ProviderKey, req.DisplayName); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "linked"})
}

func (h *ExternalLoginHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Unlink(r.Context(), claims.AccountID, chi.URLParam(r, "provider")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "unlinked"})
}

func (h *ExternalLoginHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	logins, err := h.svc.List(r.Context(), claims.AccountID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logins)
}
