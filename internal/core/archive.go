package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"animcore/internal/archive"
	"animcore/pkg/animation"
	"animcore/pkg/animation/encoding"
)

// ExportEditLog writes the persisted edit log as one snapshot into store.
// An empty key is replaced by a fresh UUID. The returned info carries the
// snapshot key the caller needs to import the log later.
func (e *Editor) ExportEditLog(ctx context.Context, store archive.Store, key string) (archive.SnapshotInfo, error) {
	if key == "" {
		key = uuid.NewString() + ".editlog"
	}

	var (
		lines   []string
		readErr error
	)
	err := e.query(ctx, func(d *document) {
		if d.editLogLen == 0 {
			return
		}
		responses, err := d.run(ctx, []animation.StorageCommand{{
			Kind:  animation.CmdReadEdits,
			Start: 0,
			End:   d.editLogLen,
		}})
		if err != nil {
			readErr = err
			return
		}
		for _, resp := range responses {
			if resp.Kind != animation.RespEdit {
				readErr = fmt.Errorf("unexpected response %s reading edit log", resp.Kind)
				return
			}
			lines = append(lines, resp.Serialized)
		}
	})
	if err != nil {
		return archive.SnapshotInfo{}, err
	}
	if readErr != nil {
		return archive.SnapshotInfo{}, fmt.Errorf("export edit log: %w", readErr)
	}

	var payload strings.Builder
	for _, line := range lines {
		payload.WriteString(line)
		payload.WriteByte('\n')
	}
	info, err := store.Put(ctx, key, strings.NewReader(payload.String()), archive.PutOptions{
		ContentType: archive.ContentTypeEditLog,
		Metadata:    map[string]string{"edit-count": strconv.Itoa(len(lines))},
	})
	if err != nil {
		return archive.SnapshotInfo{}, fmt.Errorf("export edit log: %w", err)
	}
	e.logger.Info("edit log exported", "key", info.Key, "edits", len(lines))
	return info, nil
}

// ImportEditLog replays an archived edit log into the editor, one publish
// per logged edit, and waits for the batches to retire. The editor should be
// freshly opened on an empty backend; replaying on top of existing edits
// appends rather than replaces.
func ImportEditLog(ctx context.Context, editor *Editor, store archive.Store, key string) error {
	_, body, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("import edit log: %w", err)
	}
	defer func() { _ = body.Close() }()

	edits, err := encoding.ReadEditLog(body, nil)
	if err != nil {
		return fmt.Errorf("import edit log: %w", err)
	}
	for i := range edits {
		if err := editor.Publish(ctx, edits[i:i+1]); err != nil {
			return fmt.Errorf("import edit log: replay edit %d: %w", i, err)
		}
	}
	return editor.WhenEmpty(ctx)
}
