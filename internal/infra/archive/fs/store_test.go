package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"animcore/internal/archive/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload := "S0000000000000280\nS0000000000000168\n"
	info, err := store.Put(ctx, "logs/doc.editlog", strings.NewReader(payload), core.PutOptions{
		ContentType: core.ContentTypeEditLog,
		Metadata:    map[string]string{"edit-count": "2"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", info.Size, len(payload))
	}
	if info.ETag == "" {
		t.Fatalf("etag is empty")
	}

	got, body, err := store.Get(ctx, "logs/doc.editlog")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("body = %q, want %q", data, payload)
	}
	if got.ContentType != core.ContentTypeEditLog || got.Metadata["edit-count"] != "2" || got.ETag != info.ETag {
		t.Fatalf("round-tripped info = %+v", got)
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "doc.editlog", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := store.Put(ctx, "doc.editlog", strings.NewReader("b"), core.PutOptions{}); err == nil {
		t.Fatalf("overwrite succeeded")
	}
}

func TestKeySanitization(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "  ", "../escape", "a/../../b", "/absolute"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q was accepted", key)
		}
		if _, _, err := store.Get(ctx, key); err == nil {
			t.Fatalf("get with key %q succeeded", key)
		}
	}
}

func TestHeadAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "doc.editlog", strings.NewReader("abc"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	info, err := store.Head(ctx, "doc.editlog")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if info.Size != 3 {
		t.Fatalf("head size = %d, want 3", info.Size)
	}

	deleted, err := store.Delete(ctx, "doc.editlog")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if _, err := store.Head(ctx, "doc.editlog"); err == nil {
		t.Fatalf("head after delete succeeded")
	}
	deleted, err = store.Delete(ctx, "doc.editlog")
	if err != nil || deleted {
		t.Fatalf("second Delete = %v, %v, want false", deleted, err)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"logs/a.editlog", "logs/b.editlog", "other/c.editlog"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "logs/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "logs/a.editlog" || infos[1].Key != "logs/b.editlog" {
		t.Fatalf("List = %+v", infos)
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List all returned %d entries, want 3", len(all))
	}
}

func TestPresignURLIsGetOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	url, err := store.PresignURL(ctx, "doc.editlog", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.HasPrefix(url, "http://local.archive/") {
		t.Fatalf("url = %q", url)
	}
	if _, err := store.PresignURL(ctx, "doc.editlog", core.SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatalf("presigned PUT succeeded")
	}
}
