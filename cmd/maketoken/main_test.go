package main

import (
	"context"
	"errors"
	"testing"

	"github.com/passreset/passreset/internal/config"
	"github.com/passreset/passreset/internal/directory"
	"github.com/passreset/passreset/internal/fingerprint"
	"github.com/passreset/passreset/internal/models"
	"github.com/passreset/passreset/internal/repository"
	"go.uber.org/zap"
)

// fakeConn implements directory.Connection for testing.
type fakeConn struct {
	entries map[string]*directory.Entry
	closed  int
}

func (f *fakeConn) Resolve(dn string) (*directory.Entry, error) {
	e, ok := f.entries[dn]
	if !ok {
		return nil, directory.ErrEntryNotFound
	}
	return e, nil
}

func (f *fakeConn) SetPassword(dn, newPassword string) error { return nil }

func (f *fakeConn) Close() error {
	f.closed++
	return nil
}

// fakeBinder implements directoryBinder for testing.
type fakeBinder struct {
	conn    *fakeConn
	bindErr error
}

func (f *fakeBinder) Bind(bindDN, password string) (directory.Connection, error) {
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	return f.conn, nil
}

type nopAudit = repository.NopAuditRepository

func testConfig(t *testing.T) *config.Options {
	t.Helper()
	cfg := config.Defaults()
	cfg.TokenDir = t.TempDir()
	cfg.UserOU = "ou=users,dc=example,dc=org"
	cfg.AdminDN = "cn=admin,dc=example,dc=org"
	cfg.AdminPassword = "adminsecret"
	cfg.Salt = "pepper"
	return cfg
}

func TestIssueAndRevoke(t *testing.T) {
	cfg := testConfig(t)
	repo := repository.NewFileTokenRepository(cfg.TokenDir, zap.NewNop())

	aliceDN := "uid=alice," + cfg.UserOU
	binder := &fakeBinder{conn: &fakeConn{entries: map[string]*directory.Entry{
		aliceDN: {DN: aliceDN, CommonName: "Alice", UID: "alice"},
	}}}

	if code := issue(cfg, binder, repo, nopAudit{}, "alice", true); code != exitOK {
		t.Fatalf("issue: got exit code %d, want %d", code, exitOK)
	}
	if binder.conn.closed != 1 {
		t.Errorf("connection not closed after issue")
	}

	// The record is stored under the deterministic token for alice's DN.
	token, err := fingerprint.Fingerprint(aliceDN, cfg.Salt)
	if err != nil {
		t.Fatalf("unexpected fingerprint error: %v", err)
	}
	rec, err := repo.Read(context.Background(), token)
	if err != nil || rec == nil {
		t.Fatalf("token record not stored: rec=%v err=%v", rec, err)
	}
	if rec.DN != aliceDN || rec.Username != "Alice" {
		t.Errorf("unexpected record: %+v", rec)
	}

	// Issuing again while the token is open is a conflict.
	if code := issue(cfg, binder, repo, nopAudit{}, "alice", true); code != exitConflict {
		t.Fatalf("second issue: got exit code %d, want %d", code, exitConflict)
	}

	// Revocation needs no directory connectivity.
	if code := revoke(cfg, repo, nopAudit{}, "alice", true); code != exitOK {
		t.Fatalf("revoke: got exit code %d, want %d", code, exitOK)
	}
	if code := revoke(cfg, repo, nopAudit{}, "alice", true); code != exitConflict {
		t.Fatalf("second revoke: got exit code %d, want %d", code, exitConflict)
	}
}

func TestIssue_UserNotFound(t *testing.T) {
	cfg := testConfig(t)
	repo := repository.NewFileTokenRepository(cfg.TokenDir, zap.NewNop())
	binder := &fakeBinder{conn: &fakeConn{entries: map[string]*directory.Entry{}}}

	if code := issue(cfg, binder, repo, nopAudit{}, "ghost", false); code != exitNotFound {
		t.Fatalf("got exit code %d, want %d", code, exitNotFound)
	}
}

func TestIssue_DirectoryDown(t *testing.T) {
	cfg := testConfig(t)
	repo := repository.NewFileTokenRepository(cfg.TokenDir, zap.NewNop())
	binder := &fakeBinder{bindErr: directory.ErrUnreachable}

	if code := issue(cfg, binder, repo, nopAudit{}, "alice", false); code != exitNotFound {
		t.Fatalf("got exit code %d, want %d", code, exitNotFound)
	}
}

func TestIssue_NonASCIIDN(t *testing.T) {
	cfg := testConfig(t)
	repo := repository.NewFileTokenRepository(cfg.TokenDir, zap.NewNop())

	dn := "uid=zoë," + cfg.UserOU
	binder := &fakeBinder{conn: &fakeConn{entries: map[string]*directory.Entry{
		"uid=zoë," + cfg.UserOU: {DN: dn, CommonName: "Zoë"},
	}}}

	if code := issue(cfg, binder, repo, nopAudit{}, "zoë", false); code != exitStorage {
		t.Fatalf("got exit code %d, want %d", code, exitStorage)
	}
}

// Audit failures change nothing about the outcome.
func TestIssue_AuditFailureIgnored(t *testing.T) {
	cfg := testConfig(t)
	repo := repository.NewFileTokenRepository(cfg.TokenDir, zap.NewNop())

	aliceDN := "uid=alice," + cfg.UserOU
	binder := &fakeBinder{conn: &fakeConn{entries: map[string]*directory.Entry{
		aliceDN: {DN: aliceDN, CommonName: "Alice"},
	}}}

	if code := issue(cfg, binder, repo, failingAudit{}, "alice", true); code != exitOK {
		t.Fatalf("got exit code %d, want %d", code, exitOK)
	}
}

type failingAudit struct{}

func (failingAudit) Record(ctx context.Context, kind models.AuditKind, dn, detail string) error {
	return errors.New("audit db down")
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no uid", args: []string{"--create"}},
		{name: "no action", args: []string{"alice"}},
		{name: "both actions", args: []string{"--create", "--delete", "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := run(tt.args); code != exitUsage {
				t.Errorf("run(%v) = %d, want %d", tt.args, code, exitUsage)
			}
		})
	}
}
