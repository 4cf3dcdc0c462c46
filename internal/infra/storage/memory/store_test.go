package memory

import (
	"context"
	"testing"
	"time"

	"animcore/pkg/animation"
)

func runOne(t *testing.T, store *Store, cmd animation.StorageCommand) []animation.StorageResponse {
	t.Helper()
	responses, err := store.RunCommands(context.Background(), []animation.StorageCommand{cmd})
	if err != nil {
		t.Fatalf("RunCommands(%s): %v", cmd.Kind, err)
	}
	return responses
}

func TestAnimationPropertiesLifecycle(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close() }()

	resp := runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadAnimationProperties})
	if len(resp) != 1 || resp[0].Kind != animation.RespNotFound {
		t.Fatalf("fresh store properties = %+v, want not found", resp)
	}

	blob := animation.DefaultAnimationProperties().Serialize()
	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdWriteAnimationProperties, Serialized: blob})
	if len(resp) != 1 || resp[0].Kind != animation.RespUpdated {
		t.Fatalf("write properties = %+v, want updated", resp)
	}

	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadAnimationProperties})
	if len(resp) != 1 || resp[0].Kind != animation.RespAnimationProperties || resp[0].Serialized != blob {
		t.Fatalf("read properties = %+v", resp)
	}
}

func TestEditLogAppendAndRangeRead(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close() }()

	lines := []string{"first", "second", "third"}
	for _, line := range lines {
		runOne(t, store, animation.StorageCommand{Kind: animation.CmdWriteEdit, Serialized: line})
	}

	resp := runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadEditLogLength})
	if len(resp) != 1 || resp[0].Kind != animation.RespNumberOfEdits || resp[0].Count != 3 {
		t.Fatalf("log length = %+v, want 3", resp)
	}

	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadEdits, Start: 1, End: 3})
	if len(resp) != 2 {
		t.Fatalf("read edits [1,3) returned %d responses", len(resp))
	}
	for i, r := range resp {
		if r.Kind != animation.RespEdit || r.Index != i+1 || r.Serialized != lines[i+1] {
			t.Fatalf("edit %d = %+v", i, r)
		}
	}

	// Ranges past the end are clamped, not errors.
	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadEdits, Start: 2, End: 10})
	if len(resp) != 1 || resp[0].Serialized != "third" {
		t.Fatalf("clamped read = %+v", resp)
	}
}

func TestElementLifecycle(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close() }()

	resp := runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElement, ElementID: 5})
	if resp[0].Kind != animation.RespNotFound {
		t.Fatalf("missing element = %+v, want not found", resp)
	}

	runOne(t, store, animation.StorageCommand{Kind: animation.CmdWriteElement, ElementID: 5, Serialized: "blob-v1"})
	runOne(t, store, animation.StorageCommand{Kind: animation.CmdWriteElement, ElementID: 5, Serialized: "blob-v2"})

	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElement, ElementID: 5})
	if resp[0].Kind != animation.RespElement || resp[0].Serialized != "blob-v2" || resp[0].ElementID != 5 {
		t.Fatalf("element read = %+v", resp)
	}

	runOne(t, store, animation.StorageCommand{Kind: animation.CmdDeleteElement, ElementID: 5})
	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElement, ElementID: 5})
	if resp[0].Kind != animation.RespNotFound {
		t.Fatalf("deleted element still readable: %+v", resp)
	}
}

func TestKeyFrameZOrderAndAttachments(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close() }()
	when := 200 * time.Millisecond

	runOne(t, store, animation.StorageCommand{Kind: animation.CmdAddLayer, LayerID: 2, Serialized: "{}"})
	runOne(t, store, animation.StorageCommand{Kind: animation.CmdAddKeyFrame, LayerID: 2, When: when})
	for id, blob := range map[int64]string{10: "a", 11: "b", 12: "c"} {
		runOne(t, store, animation.StorageCommand{Kind: animation.CmdWriteElement, ElementID: id, Serialized: blob})
	}
	for _, id := range []int64{11, 10, 12} {
		runOne(t, store, animation.StorageCommand{Kind: animation.CmdAttachElementToLayer, LayerID: 2, ElementID: id, When: when})
	}

	resp := runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElementsForKeyFrame, LayerID: 2, When: when})
	if len(resp) != 3 {
		t.Fatalf("keyframe holds %d elements, want 3", len(resp))
	}
	// Z-order is attach order.
	wantOrder := []int64{11, 10, 12}
	for i, r := range resp {
		if r.ElementID != wantOrder[i] {
			t.Fatalf("z-order[%d] = %d, want %d", i, r.ElementID, wantOrder[i])
		}
	}

	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElementAttachments, ElementID: 10})
	if len(resp) != 1 || len(resp[0].Attachments) != 1 {
		t.Fatalf("attachments = %+v", resp)
	}
	if att := resp[0].Attachments[0]; att.LayerID != 2 || att.When != when {
		t.Fatalf("attachment = %+v", att)
	}

	runOne(t, store, animation.StorageCommand{Kind: animation.CmdDetachElementFromLayer, ElementID: 10})
	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElementsForKeyFrame, LayerID: 2, When: when})
	if len(resp) != 2 || resp[0].ElementID != 11 || resp[1].ElementID != 12 {
		t.Fatalf("after detach keyframe = %+v", resp)
	}
	// Detached elements stay stored.
	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElement, ElementID: 10})
	if resp[0].Kind != animation.RespElement {
		t.Fatalf("detached element gone: %+v", resp)
	}
}

func TestDeleteKeyFrameKeepsElements(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close() }()

	runOne(t, store, animation.StorageCommand{Kind: animation.CmdAddLayer, LayerID: 1, Serialized: "{}"})
	runOne(t, store, animation.StorageCommand{Kind: animation.CmdAddKeyFrame, LayerID: 1, When: 0})
	runOne(t, store, animation.StorageCommand{Kind: animation.CmdWriteElement, ElementID: 1, Serialized: "x"})
	runOne(t, store, animation.StorageCommand{Kind: animation.CmdAttachElementToLayer, LayerID: 1, ElementID: 1, When: 0})

	runOne(t, store, animation.StorageCommand{Kind: animation.CmdDeleteKeyFrame, LayerID: 1, When: 0})

	resp := runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElementsForKeyFrame, LayerID: 1, When: 0})
	if len(resp) != 0 {
		t.Fatalf("deleted keyframe still lists %d elements", len(resp))
	}
	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElement, ElementID: 1})
	if resp[0].Kind != animation.RespElement {
		t.Fatalf("element removed with its keyframe: %+v", resp)
	}
	resp = runOne(t, store, animation.StorageCommand{Kind: animation.CmdReadElementAttachments, ElementID: 1})
	if len(resp[0].Attachments) != 0 {
		t.Fatalf("stale attachment after keyframe delete: %+v", resp[0].Attachments)
	}
}

func TestBatchAppliesInOrder(t *testing.T) {
	store := NewStore()
	defer func() { _ = store.Close() }()

	responses, err := store.RunCommands(context.Background(), []animation.StorageCommand{
		{Kind: animation.CmdWriteEdit, Serialized: "one"},
		{Kind: animation.CmdWriteEdit, Serialized: "two"},
		{Kind: animation.CmdReadEditLogLength},
	})
	if err != nil {
		t.Fatalf("RunCommands: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	if responses[2].Kind != animation.RespNumberOfEdits || responses[2].Count != 2 {
		t.Fatalf("length response = %+v", responses[2])
	}
}
