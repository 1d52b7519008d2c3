package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/passreset/passreset/internal/models"
	"go.uber.org/zap"
)

func setupTokenRepo(t *testing.T) (*FileTokenRepository, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileTokenRepository(dir, zap.NewNop()), dir
}

func TestCreateAndRead(t *testing.T) {
	repo, _ := setupTokenRepo(t)
	ctx := context.Background()

	rec := models.TokenRecord{DN: "uid=alice,ou=users,dc=example,dc=org", Username: "Alice"}
	if err := repo.Create(ctx, "WWAjd1veSCA", rec); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	got, err := repo.Read(ctx, "WWAjd1veSCA")
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got absent")
	}
	if got.DN != rec.DN || got.Username != rec.Username {
		t.Errorf("got %+v, want %+v", got, rec)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	repo, _ := setupTokenRepo(t)
	ctx := context.Background()

	first := models.TokenRecord{DN: "uid=alice,ou=users,dc=example,dc=org", Username: "Alice"}
	if err := repo.Create(ctx, "sometoken", first); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	second := models.TokenRecord{DN: "uid=mallory,ou=users,dc=example,dc=org", Username: "Mallory"}
	if err := repo.Create(ctx, "sometoken", second); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("second create: got %v, want ErrTokenExists", err)
	}

	// The first record must be intact.
	got, err := repo.Read(ctx, "sometoken")
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if got == nil || got.DN != first.DN {
		t.Errorf("first record altered: got %+v", got)
	}
}

func TestCreate_FileFormat(t *testing.T) {
	repo, dir := setupTokenRepo(t)
	ctx := context.Background()

	rec := models.TokenRecord{DN: "uid=bob,ou=users,dc=example,dc=org", Username: "Bob"}
	if err := repo.Create(ctx, "utisMB_26aM", rec); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	// The on-disk format is a stable contract: a JSON object with "dn"
	// and "username" keys, filename equal to the token.
	data, err := os.ReadFile(filepath.Join(dir, "utisMB_26aM"))
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("token file is not JSON: %v", err)
	}
	if raw["dn"] != rec.DN || raw["username"] != rec.Username {
		t.Errorf("unexpected file content: %v", raw)
	}
}

func TestRead_Absent(t *testing.T) {
	repo, _ := setupTokenRepo(t)

	got, err := repo.Read(context.Background(), "nosuchtoken")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected absent, got %+v", got)
	}
}

func TestRead_KeepSentinel(t *testing.T) {
	repo, dir := setupTokenRepo(t)

	// Even a .keep file with valid record content must never resolve.
	content := `{"dn":"uid=alice,ou=users,dc=example,dc=org","username":"Alice"}`
	if err := os.WriteFile(filepath.Join(dir, ".keep"), []byte(content), 0o600); err != nil {
		t.Fatalf("cannot write sentinel: %v", err)
	}

	got, err := repo.Read(context.Background(), ".keep")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("sentinel resolved to %+v, want absent", got)
	}
}

func TestRead_PathTraversal(t *testing.T) {
	repo, dir := setupTokenRepo(t)
	ctx := context.Background()

	// Plant a file outside the token dir that a traversal would reach.
	outside := filepath.Join(filepath.Dir(dir), "secret")
	if err := os.WriteFile(outside, []byte(`{"dn":"x","username":"x"}`), 0o600); err != nil {
		t.Fatalf("cannot write outside file: %v", err)
	}

	for _, token := range []string{
		"../secret",
		"..",
		"a/b",
		`a\b`,
		"",
		"sub/../../secret",
	} {
		got, err := repo.Read(ctx, token)
		if err != nil {
			t.Errorf("token %q: unexpected error: %v", token, err)
		}
		if got != nil {
			t.Errorf("token %q resolved to %+v, want absent", token, got)
		}
	}
}

func TestDelete_Idempotent(t *testing.T) {
	repo, _ := setupTokenRepo(t)
	ctx := context.Background()

	rec := models.TokenRecord{DN: "uid=carol,ou=people,dc=example,dc=com", Username: "Carol"}
	if err := repo.Create(ctx, "tok", rec); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	repo.Delete(ctx, "tok")
	if got, _ := repo.Read(ctx, "tok"); got != nil {
		t.Fatalf("record still present after delete: %+v", got)
	}

	// Deleting again, or deleting something that never existed, is a no-op.
	repo.Delete(ctx, "tok")
	repo.Delete(ctx, "never-existed")
	repo.Delete(ctx, "../outside")
}

func TestRemove(t *testing.T) {
	repo, _ := setupTokenRepo(t)
	ctx := context.Background()

	if err := repo.Remove(ctx, "absent"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("remove absent: got %v, want ErrTokenNotFound", err)
	}

	rec := models.TokenRecord{DN: "uid=dave,ou=users,dc=example,dc=org", Username: "Dave"}
	if err := repo.Create(ctx, "tok", rec); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if err := repo.Remove(ctx, "tok"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	if err := repo.Remove(ctx, "tok"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("second remove: got %v, want ErrTokenNotFound", err)
	}
}
