// Package archive selects and exposes the edit-log snapshot stores.
package archive

import (
	"context"
	"fmt"
	"os"

	"animcore/internal/archive/core"
	fsstore "animcore/internal/infra/archive/fs"
	memorystore "animcore/internal/infra/archive/memory"
	s3store "animcore/internal/infra/archive/s3"
)

// Re-exported core types so callers depend on one package.
type (
	Store            = core.Store
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	SnapshotInfo     = core.SnapshotInfo
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory

	// ContentTypeEditLog is the content type recorded for exported edit logs.
	ContentTypeEditLog = core.ContentTypeEditLog
)

// ErrUnsupported mirrors core.ErrUnsupported.
var ErrUnsupported = core.ErrUnsupported

// NewMemory returns an in-memory store (tests).
func NewMemory() Store { return memorystore.New() }

// NewFilesystem returns a filesystem store rooted at root.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// NewS3 returns an S3 store from explicit configuration.
func NewS3(ctx context.Context, cfg s3store.Config) (Store, error) { return s3store.New(ctx, cfg) }

// Open selects an archive Store implementation using environment variables.
//
//	ANIMCORE_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	ANIMCORE_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archivedata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("ANIMCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("ANIMCORE_ARCHIVE_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
