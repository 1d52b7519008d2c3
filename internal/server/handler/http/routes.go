// Package http provides HTTP routing and middleware configuration
// for the credential-reset service.
package http

import (
	"net/http"

	"github.com/passreset/passreset/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the
// credential-reset API. It applies JSON content-type enforcement and
// request logging, and mounts the change and token-lookup endpoints.
//
// Routes:
//
//	POST /changePassword → passwordHandler.ChangePassword
//	GET  /token/{token}  → tokenHandler.Info
func NewRouter(
	passwordHandler *PasswordHandler,
	tokenHandler *TokenHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow request bodies with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Post("/changePassword", passwordHandler.ChangePassword)
	r.Get("/token/{token}", tokenHandler.Info)

	return r
}
