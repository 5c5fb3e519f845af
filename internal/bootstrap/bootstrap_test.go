package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"labInventoryManager/internal/config"
	"labInventoryManager/internal/testutil"
	"labInventoryManager/repository"
)

var testAdmin = config.AdminConfig{Username: "admin", Password: "fer", Email: "admin@lab.org"}

func TestRun_EmptyStoreCreatesSingleAdmin(t *testing.T) {
	ctx := context.Background()
	path := testutil.InMemoryPath("bootstrap_empty")

	d, err := Run(ctx, path, testAdmin)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("expected one user after bootstrap, n=%d err=%v", n, err)
	}

	users := repository.NewUserRepository(d)
	if ok, err := users.Validate(ctx, "admin", "fer"); err != nil || !ok {
		t.Fatalf("default admin must validate: ok=%v err=%v", ok, err)
	}
	if ok, err := users.Validate(ctx, "admin", "wrong"); err != nil || ok {
		t.Fatalf("wrong password must not validate: ok=%v err=%v", ok, err)
	}
}

func TestRun_Twice(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "inventory.db")

	d1, err := Run(ctx, path, testAdmin)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	_ = d1.Close()

	d2, err := Run(ctx, path, testAdmin)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	t.Cleanup(func() { _ = d2.Close() })

	n, err := repository.NewUserRepository(d2).CountByUsername(ctx, "admin")
	if err != nil || n != 1 {
		t.Fatalf("expected exactly one admin, n=%d err=%v", n, err)
	}
}

func TestEnsureAdmin_KeepsExistingAccount(t *testing.T) {
	ctx := context.Background()
	d := testutil.OpenInMemoryDB(t, "bootstrap_existing")
	users := repository.NewUserRepository(d)
	if _, err := users.CreateAdmin(ctx, "admin", "custom", "custom@lab.org"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := EnsureAdmin(ctx, users, testAdmin); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ok, _ := users.Validate(ctx, "admin", "custom"); !ok {
		t.Fatalf("existing admin password must be kept")
	}
	if ok, _ := users.Validate(ctx, "admin", "fer"); ok {
		t.Fatalf("default password must not overwrite existing admin")
	}
}

func TestRun_FatalOnUnusableStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// A directory where the database file should be cannot be opened.
	blocked := filepath.Join(dir, "inventory.db")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := Run(ctx, blocked, testAdmin); !errors.Is(err, ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
	if err := EnsureAdmin(ctx, nil, config.AdminConfig{}); !errors.Is(err, ErrFatal) {
		t.Fatalf("empty admin must be fatal, got %v", err)
	}
}
