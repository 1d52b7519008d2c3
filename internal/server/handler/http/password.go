// Package http provides HTTP handlers for the credential-reset API.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/passreset/passreset/internal/models"
)

// PasswordService defines the interface for credential-change operations
// required by the HTTP handlers.
type PasswordService interface {
	// ChangePassword performs one credential change and reports whether
	// the caller may retry the same request.
	ChangePassword(ctx context.Context, req models.ChangeRequest) models.ChangeResult
}

// PasswordHandler handles HTTP requests for credential changes.
type PasswordHandler struct {
	// PasswordService performs the underlying change operation.
	PasswordService PasswordService
}

// changePasswordRequest represents the JSON payload for a change request.
// Presence of password_old selects self-asserted mode; otherwise the token
// is used.
type changePasswordRequest struct {
	Token           string `json:"token"`
	AccountName     string `json:"account_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	PasswordOld     string `json:"password_old"`
}

// changePasswordResponse is the wire response: can_retry as 0/1 and a list
// of structured errors, empty on success.
type changePasswordResponse struct {
	CanRetry int               `json:"can_retry"`
	Errors   []models.APIError `json:"errors"`
}

// ChangePassword handles POST /changePassword requests. It decodes the JSON
// body, decides the authentication path once at this boundary, invokes the
// service, and always answers 200 with the structured result; only a
// malformed body yields a 400.
func (h *PasswordHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	change := models.ChangeRequest{
		NewPassword:     req.Password,
		ConfirmPassword: req.PasswordConfirm,
	}
	if req.PasswordOld != "" {
		change.Auth = models.SelfAssertedAuth{
			AccountName: req.AccountName,
			OldPassword: req.PasswordOld,
		}
	} else {
		change.Auth = models.TokenAuth{Token: req.Token}
	}

	result := h.PasswordService.ChangePassword(r.Context(), change)

	resp := changePasswordResponse{Errors: result.Errors}
	if result.CanRetry {
		resp.CanRetry = 1
	}
	if resp.Errors == nil {
		resp.Errors = []models.APIError{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
