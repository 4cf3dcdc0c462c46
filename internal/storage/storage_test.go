package storage

import (
	"context"
	"path/filepath"
	"testing"

	"animcore/internal/infra/storage/memory"
	"animcore/internal/infra/storage/sqlite"
)

func TestOpenDefaultsToMemory(t *testing.T) {
	t.Setenv("ANIMCORE_STORAGE_DRIVER", "")
	backend, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = backend.Close() }()
	if _, ok := backend.(*memory.Store); !ok {
		t.Fatalf("default backend is %T, want *memory.Store", backend)
	}
}

func TestOpenSelectsSQLite(t *testing.T) {
	t.Setenv("ANIMCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("ANIMCORE_STORAGE_SQLITE_PATH", filepath.Join(t.TempDir(), "doc.db"))
	backend, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = backend.Close() }()
	if _, ok := backend.(*sqlite.Store); !ok {
		t.Fatalf("sqlite backend is %T, want *sqlite.Store", backend)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ANIMCORE_STORAGE_DRIVER", "tape")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
