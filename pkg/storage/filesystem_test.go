package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/JaimeStill/agent-chat/pkg/logging"
	"github.com/JaimeStill/agent-chat/pkg/storage"
)

func newStorage(t *testing.T) (storage.System, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "blobs")

	sys, err := storage.New(&storage.Config{BasePath: dir}, logging.Discard())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := sys.Start(lifecycle.New()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return sys, dir
}

func TestNew_EmptyBasePath(t *testing.T) {
	if _, err := storage.New(&storage.Config{}, logging.Discard()); err == nil {
		t.Fatal("New() succeeded with empty BasePath")
	}
}

func TestStart_CreatesDirectory(t *testing.T) {
	_, dir := newStorage(t)

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("base directory missing after Start(): %v", err)
	}
}

func TestFilesystem_Lifecycle(t *testing.T) {
	sys, dir := newStorage(t)
	ctx := context.Background()
	key := "files/0190/quote.pdf"

	if err := sys.Store(ctx, key, []byte("%PDF-1.7")); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	data, err := sys.Retrieve(ctx, key)
	if err != nil {
		t.Fatalf("Retrieve() failed: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Errorf("Retrieve() = %q", data)
	}

	ok, err := sys.Exists(ctx, key)
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want true, nil", ok, err)
	}

	if err := sys.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := sys.Delete(ctx, key); err != nil {
		t.Errorf("second Delete() = %v, want nil", err)
	}

	if _, err := sys.Retrieve(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Retrieve() after delete = %v, want ErrNotFound", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "files", "0190")); !os.IsNotExist(err) {
		t.Error("empty parent directory not pruned")
	}
}

func TestFilesystem_InvalidKeys(t *testing.T) {
	sys, _ := newStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "/etc/passwd", "a/../../b"} {
		t.Run(key, func(t *testing.T) {
			if err := sys.Store(ctx, key, []byte("x")); !errors.Is(err, storage.ErrInvalidKey) {
				t.Errorf("Store(%q) = %v, want ErrInvalidKey", key, err)
			}
		})
	}
}
