package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-auth-core/internal/application/account"
	"github.com/go-auth-core/internal/domain"
	"github.com/go-auth-core/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// AccountHandler handles account lifecycle endpoints.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler {
	return &AccountHandler{svc: svc}
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := h.svc.Create(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SoftDelete(r.Context(), chi.URLParam(r, "id"), performedBy(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account deleted"})
}

func (h *AccountHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if err := h.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), status, performedBy(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "status updated"})
}

// SetVerification sets or clears verification flags. Absent fields are left
// untouched, so an admin can flip one flag without knowing the other.
func (h *AccountHandler) SetVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmailVerified *bool `json:"email_verified"`
		PhoneVerified *bool `json:"phone_verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accountID := chi.URLParam(r, "id")
	if req.EmailVerified != nil {
		if err := h.svc.SetEmailVerified(r.Context(), accountID, *req.EmailVerified); err != nil {
			httpError(w, err)
			return
		}
	}
	if req.PhoneVerified != nil {
		if err := h.svc.SetPhoneVerified(r.Context(), accountID, *req.PhoneVerified); err != nil {
			httpError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification updated"})
}

// UpdateContact lets the authenticated account change its own email or phone.
// The new contact point starts unverified.
func (h *AccountHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}
	var req struct {
		Channel string `json:"channel"`
		Value   string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.UpdateContact(r.Context(), claims.AccountID, account.VerificationChannel(req.Channel), req.Value); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "contact updated"})
}

func (h *AccountHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req account.AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.AssignRole(r.Context(), chi.URLParam(r, "id"), req, performedBy(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "role assigned"})
}

// performedBy identifies the acting account for audit fields; nil when the
// request carries no claims.
func performedBy(r *http.Request) *string {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return &claims.AccountID
	}
	return nil
}
