// Package sqlite provides a SQLite-backed implementation of the storage
// command protocol, suitable for single-file animation documents.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"animcore/pkg/animation"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the backend interface.
var _ animation.Backend = (*Store)(nil)

// Store executes storage commands against a SQLite database. Each
// RunCommands batch runs inside one transaction, so a batch either fully
// applies or leaves the document untouched.
type Store struct {
	db   *sql.DB
	path string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS anim_properties (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		payload TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edit_log (
		idx INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS elements (
		id INTEGER PRIMARY KEY,
		payload TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS layers (
		id INTEGER PRIMARY KEY,
		payload TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS key_frames (
		layer_id INTEGER NOT NULL,
		at_time INTEGER NOT NULL,
		PRIMARY KEY (layer_id, at_time)
	)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		element_id INTEGER NOT NULL,
		layer_id INTEGER NOT NULL,
		at_time INTEGER NOT NULL,
		z_index INTEGER NOT NULL,
		PRIMARY KEY (element_id, layer_id, at_time)
	)`,
	`CREATE INDEX IF NOT EXISTS attachments_frame ON attachments (layer_id, at_time, z_index)`,
}

// NewStore opens (creating if needed) a SQLite-backed document store.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "animcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, animation.NewStorageFailure(animation.StorageErrorFailedToInitialise, fmt.Errorf("create dirs: %w", err))
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, animation.NewStorageFailure(animation.StorageErrorFailedToInitialise, fmt.Errorf("open sqlite: %w", err))
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, animation.NewStorageFailure(animation.StorageErrorFailedToInitialise, fmt.Errorf("apply schema: %w", err))
		}
	}
	return &Store{db: db, path: path}, nil
}

// RunCommands applies a batch of storage commands inside one transaction.
func (s *Store) RunCommands(ctx context.Context, commands []animation.StorageCommand) (responses []animation.StorageResponse, retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, animation.NewStorageFailure(animation.StorageErrorGeneral, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	responses = make([]animation.StorageResponse, 0, len(commands))
	for _, cmd := range commands {
		out, err := s.apply(ctx, tx, cmd)
		if err != nil {
			retErr = animation.NewStorageFailure(animation.StorageErrorGeneral, err)
			return nil, retErr
		}
		responses = append(responses, out...)
	}
	if err := tx.Commit(); err != nil {
		retErr = animation.NewStorageFailure(animation.StorageErrorGeneral, fmt.Errorf("commit: %w", err))
		return nil, retErr
	}
	return responses, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func (s *Store) apply(ctx context.Context, tx *sql.Tx, cmd animation.StorageCommand) ([]animation.StorageResponse, error) {
	switch cmd.Kind {
	case animation.CmdWriteAnimationProperties:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO anim_properties (id, payload) VALUES (0, ?)
			 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
			cmd.Serialized); err != nil {
			return nil, fmt.Errorf("write animation properties: %w", err)
		}
		return ack(), nil

	case animation.CmdReadAnimationProperties:
		var payload string
		err := tx.QueryRowContext(ctx, `SELECT payload FROM anim_properties WHERE id = 0`).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			return missing(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read animation properties: %w", err)
		}
		return []animation.StorageResponse{{Kind: animation.RespAnimationProperties, Serialized: payload}}, nil

	case animation.CmdWriteEdit:
		if _, err := tx.ExecContext(ctx, `INSERT INTO edit_log (payload) VALUES (?)`, cmd.Serialized); err != nil {
			return nil, fmt.Errorf("append edit: %w", err)
		}
		return ack(), nil

	case animation.CmdReadEditLogLength:
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM edit_log`).Scan(&count); err != nil {
			return nil, fmt.Errorf("count edits: %w", err)
		}
		return []animation.StorageResponse{{Kind: animation.RespNumberOfEdits, Count: count}}, nil

	case animation.CmdReadEdits:
		if cmd.End <= cmd.Start {
			return nil, nil
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT payload FROM edit_log ORDER BY idx LIMIT ? OFFSET ?`,
			cmd.End-cmd.Start, cmd.Start)
		if err != nil {
			return nil, fmt.Errorf("read edits: %w", err)
		}
		defer func() { _ = rows.Close() }()
		var responses []animation.StorageResponse
		idx := cmd.Start
		for rows.Next() {
			var payload string
			if err := rows.Scan(&payload); err != nil {
				return nil, fmt.Errorf("scan edit: %w", err)
			}
			responses = append(responses, animation.StorageResponse{Kind: animation.RespEdit, Index: idx, Serialized: payload})
			idx++
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate edits: %w", err)
		}
		return responses, nil

	case animation.CmdWriteElement:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO elements (id, payload) VALUES (?, ?)
			 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
			cmd.ElementID, cmd.Serialized); err != nil {
			return nil, fmt.Errorf("write element %d: %w", cmd.ElementID, err)
		}
		return ack(), nil

	case animation.CmdReadElement:
		var payload string
		err := tx.QueryRowContext(ctx, `SELECT payload FROM elements WHERE id = ?`, cmd.ElementID).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			return missing(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read element %d: %w", cmd.ElementID, err)
		}
		return []animation.StorageResponse{{Kind: animation.RespElement, ElementID: cmd.ElementID, Serialized: payload}}, nil

	case animation.CmdDeleteElement:
		if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE id = ?`, cmd.ElementID); err != nil {
			return nil, fmt.Errorf("delete element %d: %w", cmd.ElementID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE element_id = ?`, cmd.ElementID); err != nil {
			return nil, fmt.Errorf("delete element attachments %d: %w", cmd.ElementID, err)
		}
		return ack(), nil

	case animation.CmdAddLayer:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO layers (id, payload) VALUES (?, ?)
			 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
			cmd.LayerID, cmd.Serialized); err != nil {
			return nil, fmt.Errorf("add layer %d: %w", cmd.LayerID, err)
		}
		return ack(), nil

	case animation.CmdDeleteLayer:
		for _, stmt := range []string{
			`DELETE FROM attachments WHERE layer_id = ?`,
			`DELETE FROM key_frames WHERE layer_id = ?`,
			`DELETE FROM layers WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, cmd.LayerID); err != nil {
				return nil, fmt.Errorf("delete layer %d: %w", cmd.LayerID, err)
			}
		}
		return ack(), nil

	case animation.CmdAddKeyFrame:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO key_frames (layer_id, at_time) VALUES (?, ?)
			 ON CONFLICT (layer_id, at_time) DO NOTHING`,
			cmd.LayerID, cmd.When.Nanoseconds()); err != nil {
			return nil, fmt.Errorf("add key frame: %w", err)
		}
		return ack(), nil

	case animation.CmdDeleteKeyFrame:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM attachments WHERE layer_id = ? AND at_time = ?`,
			cmd.LayerID, cmd.When.Nanoseconds()); err != nil {
			return nil, fmt.Errorf("delete key frame attachments: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM key_frames WHERE layer_id = ? AND at_time = ?`,
			cmd.LayerID, cmd.When.Nanoseconds()); err != nil {
			return nil, fmt.Errorf("delete key frame: %w", err)
		}
		return ack(), nil

	case animation.CmdAttachElementToLayer:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attachments (element_id, layer_id, at_time, z_index)
			 VALUES (?, ?, ?, (SELECT COALESCE(MAX(z_index), -1) + 1 FROM attachments WHERE layer_id = ? AND at_time = ?))
			 ON CONFLICT (element_id, layer_id, at_time) DO NOTHING`,
			cmd.ElementID, cmd.LayerID, cmd.When.Nanoseconds(), cmd.LayerID, cmd.When.Nanoseconds()); err != nil {
			return nil, fmt.Errorf("attach element %d: %w", cmd.ElementID, err)
		}
		return ack(), nil

	case animation.CmdDetachElementFromLayer:
		if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE element_id = ?`, cmd.ElementID); err != nil {
			return nil, fmt.Errorf("detach element %d: %w", cmd.ElementID, err)
		}
		return ack(), nil

	case animation.CmdReadElementsForKeyFrame:
		rows, err := tx.QueryContext(ctx,
			`SELECT e.id, e.payload FROM attachments a
			 JOIN elements e ON e.id = a.element_id
			 WHERE a.layer_id = ? AND a.at_time = ?
			 ORDER BY a.z_index`,
			cmd.LayerID, cmd.When.Nanoseconds())
		if err != nil {
			return nil, fmt.Errorf("read key frame elements: %w", err)
		}
		defer func() { _ = rows.Close() }()
		var responses []animation.StorageResponse
		for rows.Next() {
			var id int64
			var payload string
			if err := rows.Scan(&id, &payload); err != nil {
				return nil, fmt.Errorf("scan key frame element: %w", err)
			}
			responses = append(responses, animation.StorageResponse{Kind: animation.RespElement, ElementID: id, Serialized: payload})
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate key frame elements: %w", err)
		}
		return responses, nil

	case animation.CmdReadElementAttachments:
		rows, err := tx.QueryContext(ctx,
			`SELECT layer_id, at_time FROM attachments WHERE element_id = ? ORDER BY layer_id, at_time`,
			cmd.ElementID)
		if err != nil {
			return nil, fmt.Errorf("read element attachments: %w", err)
		}
		defer func() { _ = rows.Close() }()
		var attachments []animation.Attachment
		for rows.Next() {
			var layerID uint64
			var nanos int64
			if err := rows.Scan(&layerID, &nanos); err != nil {
				return nil, fmt.Errorf("scan attachment: %w", err)
			}
			attachments = append(attachments, animation.Attachment{LayerID: layerID, When: durationFromNanos(nanos)})
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate attachments: %w", err)
		}
		return []animation.StorageResponse{{
			Kind:        animation.RespElementAttachments,
			ElementID:   cmd.ElementID,
			Attachments: attachments,
		}}, nil
	}

	return nil, fmt.Errorf("unknown storage command %q", cmd.Kind)
}

func ack() []animation.StorageResponse {
	return []animation.StorageResponse{animation.Updated()}
}

func missing() []animation.StorageResponse {
	return []animation.StorageResponse{animation.NotFound()}
}

func durationFromNanos(nanos int64) time.Duration {
	return time.Duration(nanos)
}
