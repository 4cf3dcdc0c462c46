package archive

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("ANIMCORE_ARCHIVE_DRIVER", "")
	t.Setenv("ANIMCORE_ARCHIVE_FS_ROOT", filepath.Join(t.TempDir(), "archive"))

	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s, want fs", store.Driver())
	}
}

func TestOpenSelectsMemoryDriver(t *testing.T) {
	t.Setenv("ANIMCORE_ARCHIVE_DRIVER", "memory")

	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s, want memory", store.Driver())
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	t.Setenv("ANIMCORE_ARCHIVE_DRIVER", "s3")
	t.Setenv("ANIMCORE_ARCHIVE_S3_BUCKET", "")

	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("Open without a bucket succeeded")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ANIMCORE_ARCHIVE_DRIVER", "tape")

	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("Open with an unknown driver succeeded")
	}
}
