// Package main initializes and starts the credential-reset HTTP server,
// setting up configuration, logging, the token store, the directory
// gateway, the optional audit database, services, and handlers.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	nethttp "net/http"

	"github.com/passreset/passreset/internal/config"
	"github.com/passreset/passreset/internal/db"
	"github.com/passreset/passreset/internal/directory"
	"github.com/passreset/passreset/internal/logger"
	"github.com/passreset/passreset/internal/repository"
	"github.com/passreset/passreset/internal/server/handler/http"
	"github.com/passreset/passreset/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config-file, and environment configuration.
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Print build metadata (or "N/A" if unset).
	if version == "" {
		version = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	fmt.Printf("Build version: %s\n", version)
	fmt.Printf("Build date: %s\n", buildDate)

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Make sure the token directory exists before serving.
	if err := os.MkdirAll(options.TokenDir, 0o700); err != nil {
		zapLogger.Fatal("cannot create token directory", zap.Error(err))
	}
	tokenRepo := repository.NewFileTokenRepository(options.TokenDir, zapLogger)

	// The audit trail is optional: without a DSN events are discarded.
	var audit service.AuditRecorder = repository.NopAuditRepository{}
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		db.StartAuditCleaner(context.Background(), postgresDB,
			time.Hour,       // interval
			90*24*time.Hour, // retention: 90 days
			zapLogger,
		)
		audit = repository.NewPostgresAuditRepository(postgresDB)
	}

	// Directory gateway and the credential-change service.
	gateway := directory.NewGateway(options.LDAPURL)
	passwordService := service.NewPasswordService(tokenRepo, gateway, audit, service.Policy{
		UserOU:            options.UserOU,
		AdminDN:           options.AdminDN,
		AdminPassword:     options.AdminPassword,
		MinPasswordLength: options.MinPasswordLength,
	}, zapLogger)

	// Create HTTP handlers for change and token-lookup endpoints.
	passwordHandler := &http.PasswordHandler{PasswordService: passwordService}
	tokenHandler := &http.TokenHandler{Tokens: tokenRepo}

	// Build the router with middleware and routes.
	router := http.NewRouter(passwordHandler, tokenHandler, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
