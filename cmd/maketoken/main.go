// Package main implements maketoken, the operator tool that issues and
// revokes password-reset tokens.
//
// Usage:
//
//	maketoken (--create|--delete) [--quiet] <uid>
//
// Exit codes are meant for scripting: 0 success, -1 directory or user not
// found, -2 token-state conflict (already exists / doesn't exist), -3
// storage failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/passreset/passreset/internal/config"
	"github.com/passreset/passreset/internal/db"
	"github.com/passreset/passreset/internal/directory"
	"github.com/passreset/passreset/internal/fingerprint"
	"github.com/passreset/passreset/internal/models"
	"github.com/passreset/passreset/internal/repository"
	"go.uber.org/zap"
)

// command is the requested operation, selected by --create or --delete.
type command int

const (
	commandIssue command = iota
	commandRevoke
)

const (
	exitOK       = 0
	exitNotFound = -1
	exitConflict = -2
	exitStorage  = -3
	exitUsage    = 2
)

// directoryBinder is the slice of the directory gateway the tool needs.
type directoryBinder interface {
	Bind(bindDN, password string) (directory.Connection, error)
}

// auditRecorder records issuance events; failures must not affect the
// operator workflow or the exit code.
type auditRecorder interface {
	Record(ctx context.Context, kind models.AuditKind, dn, detail string) error
}

func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("maketoken", flag.ContinueOnError)
	var (
		createFlag bool
		deleteFlag bool
		quiet      bool
		configPath string
	)
	fs.BoolVar(&createFlag, "create", false, "create token for user")
	fs.BoolVar(&createFlag, "c", false, "create token for user (shorthand)")
	fs.BoolVar(&deleteFlag, "delete", false, "delete token for user")
	fs.BoolVar(&deleteFlag, "d", false, "delete token for user (shorthand)")
	fs.BoolVar(&quiet, "quiet", false, "fewer information, suitable for automatisation")
	fs.BoolVar(&quiet, "q", false, "fewer information (shorthand)")
	fs.StringVar(&configPath, "config", "config.json", "path to config file")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	uid := fs.Arg(0)
	if uid == "" || createFlag == deleteFlag {
		errorf("usage: maketoken (--create|--delete) [--quiet] <uid>")
		return exitUsage
	}
	var cmd command
	if createFlag {
		cmd = commandIssue
	} else {
		cmd = commandRevoke
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		errorf("%v", err)
		return exitUsage
	}

	if err := os.MkdirAll(cfg.TokenDir, 0o700); err != nil {
		errorf("cannot create token directory: %v", err)
		return exitStorage
	}
	repo := repository.NewFileTokenRepository(cfg.TokenDir, zap.NewNop())

	var audit auditRecorder = repository.NopAuditRepository{}
	if cfg.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(cfg.DatabaseDSN)
		if err != nil {
			// The audit trail is best-effort for the CLI.
			errorf("audit database unavailable: %v", err)
		} else {
			defer postgresDB.Close()
			audit = repository.NewPostgresAuditRepository(postgresDB)
		}
	}

	switch cmd {
	case commandIssue:
		return issue(cfg, directory.NewGateway(cfg.LDAPURL), repo, audit, uid, quiet)
	case commandRevoke:
		return revoke(cfg, repo, audit, uid, quiet)
	default:
		return exitUsage
	}
}

// issue resolves the account in the directory, derives its token, and
// persists the record. One directory round trip per invocation.
func issue(cfg *config.Options, dir directoryBinder, repo *repository.FileTokenRepository, audit auditRecorder, uid string, quiet bool) int {
	ctx := context.Background()

	conn, err := dir.Bind(cfg.AdminDN, cfg.AdminPassword)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrUnreachable):
			errorf("Unable to connect to server")
		case errors.Is(err, directory.ErrInvalidCredentials):
			errorf("Invalid credentials for connection")
		default:
			errorf("Unable to connect to server: %v", err)
		}
		return exitNotFound
	}
	defer conn.Close()

	entry, err := conn.Resolve(fmt.Sprintf("uid=%s,%s", uid, cfg.UserOU))
	if err != nil {
		if errors.Is(err, directory.ErrEntryNotFound) {
			errorf("User not found in database")
		} else {
			errorf("User lookup failed: %v", err)
		}
		return exitNotFound
	}

	token, err := fingerprint.Fingerprint(entry.DN, cfg.Salt)
	if err != nil {
		errorf("creation of token failed: %v", err)
		return exitStorage
	}

	username := entry.CommonName
	if username == "" {
		username = uid
	}
	err = repo.Create(ctx, token, models.TokenRecord{DN: entry.DN, Username: username})
	if errors.Is(err, repository.ErrTokenExists) {
		errorf("That user already has an opened token")
		return exitConflict
	}
	if err != nil {
		errorf("creation of token file failed: %v", err)
		return exitStorage
	}

	if err := audit.Record(ctx, models.AuditTokenIssued, entry.DN, uid); err != nil {
		errorf("cannot record audit event: %v", err)
	}

	if quiet {
		fmt.Println(token)
	} else {
		fmt.Printf("Created token for %s: %s\n", uid, token)
	}
	return exitOK
}

// revoke recomputes the token from the constructed DN — no directory
// connectivity required — and removes the record.
func revoke(cfg *config.Options, repo *repository.FileTokenRepository, audit auditRecorder, uid string, quiet bool) int {
	ctx := context.Background()

	dn := fmt.Sprintf("uid=%s,%s", uid, cfg.UserOU)
	token, err := fingerprint.Fingerprint(dn, cfg.Salt)
	if err != nil {
		errorf("removal of token failed: %v", err)
		return exitStorage
	}

	err = repo.Remove(ctx, token)
	if errors.Is(err, repository.ErrTokenNotFound) {
		errorf("That user doesn't have a token at the moment")
		return exitConflict
	}
	if err != nil {
		errorf("Could not remove token: %v", err)
		return exitStorage
	}

	if err := audit.Record(ctx, models.AuditTokenRevoked, dn, uid); err != nil {
		errorf("cannot record audit event: %v", err)
	}

	if !quiet {
		fmt.Printf("Removed token for %s\n", uid)
	}
	return exitOK
}
