// Package http provides HTTP handlers for reset-token lookups.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/passreset/passreset/internal/models"
)

// TokenReader defines the token-store read operation required by the
// token handler.
type TokenReader interface {
	// Read returns the record for token, or (nil, nil) if the token does
	// not resolve.
	Read(ctx context.Context, token string) (*models.TokenRecord, error)
}

// TokenHandler handles HTTP requests that validate a reset link before the
// form is shown.
type TokenHandler struct {
	// Tokens reads issued token records.
	Tokens TokenReader
}

// tokenInfoResponse is returned for a live token.
type tokenInfoResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Info handles GET /token/{token} requests. A live token yields the display
// name for the reset form; anything else (unknown token, the version-control
// sentinel, malformed input) yields 404 with the structured error list.
func (h *TokenHandler) Info(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	rec, err := h.Tokens.Read(r.Context(), token)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if rec == nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []models.APIError{
				{Type: models.SeverityDanger, Msg: "Provided token is invalid"},
			},
		})
		return
	}

	_ = json.NewEncoder(w).Encode(tokenInfoResponse{Token: token, Username: rec.Username})
}
