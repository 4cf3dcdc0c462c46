// Package storage selects a document storage backend from environment
// configuration, mirroring the pluggable driver surface used elsewhere in
// the project.
package storage

import (
	"context"
	"fmt"
	"os"

	"animcore/internal/infra/storage/memory"
	"animcore/internal/infra/storage/postgres"
	"animcore/internal/infra/storage/sqlite"
	"animcore/pkg/animation"
)

// Driver identifies a storage backend implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open selects a storage backend using environment variables.
//
//	ANIMCORE_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	ANIMCORE_STORAGE_SQLITE_PATH: database file when driver=sqlite (default ./animcore.db)
//	ANIMCORE_STORAGE_POSTGRES_DSN: connection string when driver=postgres
func Open(ctx context.Context) (animation.Backend, error) {
	driver := os.Getenv("ANIMCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverMemory)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		path := os.Getenv("ANIMCORE_STORAGE_SQLITE_PATH")
		if path == "" {
			path = "./animcore.db"
		}
		return sqlite.NewStore(path)
	case DriverPostgres:
		return postgres.NewStore(os.Getenv("ANIMCORE_STORAGE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
