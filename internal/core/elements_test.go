package core

import (
	"context"
	"testing"

	"animcore/pkg/animation"
)

// paintedIDs extracts the assigned IDs of the paint edits in a retirement, in
// commit order.
func paintedIDs(t *testing.T, r RetiredEdit) []animation.ElementID {
	t.Helper()
	var ids []animation.ElementID
	for _, edit := range r.CommittedEdits {
		if edit.Kind != animation.EditLayer || edit.Layer.Edit.Paint == nil {
			continue
		}
		id := edit.Layer.Edit.Paint.ID
		if _, assigned := id.Value(); !assigned {
			t.Fatalf("painted element retired without an assigned ID")
		}
		ids = append(ids, id)
	}
	return ids
}

func elementEditOn(ids []animation.ElementID, edit animation.ElementEdit) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind:    animation.EditElement,
		Element: &animation.ElementEditTarget{IDs: ids, Edit: edit},
	}
}

// paintedLayer publishes a layer with a keyframe at zero and n circles on it,
// returning the assigned element IDs in z-order.
func paintedLayer(t *testing.T, editor *Editor, layerID uint64, n int) []animation.ElementID {
	t.Helper()
	retired := editor.RetiredEdits()
	edits := []animation.AnimationEdit{
		{Kind: animation.EditAddNewLayer, LayerID: layerID},
		addKeyFrame(layerID, 0),
	}
	for i := 0; i < n; i++ {
		edits = append(edits, createCircle(layerID, 0, float64(100*i), float64(100*i), 5))
	}
	publishAndWait(t, editor, edits...)
	return paintedIDs(t, nextRetirement(t, retired))
}

func frameIDs(t *testing.T, editor *Editor, layerID uint64) []animation.ElementID {
	t.Helper()
	frame, ok, err := editor.GetFrameAtTime(context.Background(), layerID, 0)
	if err != nil || !ok {
		t.Fatalf("GetFrameAtTime: ok=%v err=%v", ok, err)
	}
	var ids []animation.ElementID
	for _, wrapper := range frame.VectorElements() {
		ids = append(ids, wrapper.ID)
	}
	return ids
}

func TestGroupReplacesMembersInFrame(t *testing.T) {
	editor := newTestEditor(t)
	ids := paintedLayer(t, editor, 1, 3)
	retired := editor.RetiredEdits()

	publishAndWait(t, editor, elementEditOn(ids[:2], animation.ElementEdit{Kind: animation.ElementGroup}))
	grouped := nextRetirement(t, retired)

	inFrame := frameIDs(t, editor, 1)
	if len(inFrame) != 2 {
		t.Fatalf("frame holds %d elements after grouping, want group + remaining circle", len(inFrame))
	}
	frame, _, err := editor.GetFrameAtTime(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("GetFrameAtTime: %v", err)
	}
	group, ok := frame.ElementWithID(inFrame[0])
	if !ok || group.Vector.Kind != animation.VectorGroup {
		t.Fatalf("bottom frame element is %s, want the group", group.Vector.Kind)
	}
	if len(group.Vector.Group.Members) != 2 {
		t.Fatalf("group holds %d members, want 2", len(group.Vector.Group.Members))
	}
	if inFrame[1] != ids[2] {
		t.Fatalf("ungrouped circle lost its frame slot")
	}

	// Ungrouping via the generated reverse restores the original z-order.
	publishAndWait(t, editor, grouped.ReverseEdits...)
	restored := frameIDs(t, editor, 1)
	if len(restored) != 3 {
		t.Fatalf("frame holds %d elements after ungrouping, want 3", len(restored))
	}
	for i := range ids {
		if restored[i] != ids[i] {
			t.Fatalf("z-order after ungroup = %v, want %v", restored, ids)
		}
	}
}

func TestOrderToTopAndReverse(t *testing.T) {
	editor := newTestEditor(t)
	ids := paintedLayer(t, editor, 1, 3)
	retired := editor.RetiredEdits()

	publishAndWait(t, editor, elementEditOn(ids[:1], animation.ElementEdit{
		Kind:     animation.ElementOrder,
		Ordering: animation.ElementOrdering{Kind: animation.OrderToTop},
	}))
	moved := nextRetirement(t, retired)

	got := frameIDs(t, editor, 1)
	want := []animation.ElementID{ids[1], ids[2], ids[0]}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("z-order after to_top = %v, want %v", got, want)
		}
	}

	publishAndWait(t, editor, moved.ReverseEdits...)
	restored := frameIDs(t, editor, 1)
	for i := range ids {
		if restored[i] != ids[i] {
			t.Fatalf("z-order after reverse = %v, want %v", restored, ids)
		}
	}
}

func TestOrderBeforeSibling(t *testing.T) {
	editor := newTestEditor(t)
	ids := paintedLayer(t, editor, 1, 3)

	// Move the top element directly in front of the bottom one.
	publishAndWait(t, editor, elementEditOn(ids[2:], animation.ElementEdit{
		Kind:     animation.ElementOrder,
		Ordering: animation.ElementOrdering{Kind: animation.OrderBefore, Sibling: ids[0]},
	}))

	got := frameIDs(t, editor, 1)
	want := []animation.ElementID{ids[0], ids[2], ids[1]}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("z-order = %v, want %v", got, want)
		}
	}
}

func TestDeleteReverseRecreatesElement(t *testing.T) {
	editor := newTestEditor(t)
	ids := paintedLayer(t, editor, 1, 1)
	retired := editor.RetiredEdits()

	publishAndWait(t, editor, elementEditOn(ids, animation.ElementEdit{Kind: animation.ElementDelete}))
	deleted := nextRetirement(t, retired)
	if deleted.ReverseError != nil {
		t.Fatalf("delete reverse error: %v", deleted.ReverseError)
	}
	if got := frameIDs(t, editor, 1); len(got) != 0 {
		t.Fatalf("frame still holds %v after delete", got)
	}

	publishAndWait(t, editor, deleted.ReverseEdits...)
	restored := frameIDs(t, editor, 1)
	if len(restored) != 1 || restored[0] != ids[0] {
		t.Fatalf("recreation produced %v, want original element %v", restored, ids[0])
	}
	frame, _, err := editor.GetFrameAtTime(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("GetFrameAtTime: %v", err)
	}
	wrapper, ok := frame.ElementWithID(ids[0])
	if !ok || wrapper.Vector.Kind != animation.VectorShape || wrapper.Vector.Shape.Shape.Radius != 5 {
		t.Fatalf("recreated element lost its geometry: %+v", wrapper)
	}
}

func TestAttachmentCycleIsIgnored(t *testing.T) {
	editor := newTestEditor(t)
	ids := paintedLayer(t, editor, 1, 2)
	ctx := context.Background()

	publishAndWait(t, editor,
		elementEditOn(ids[:1], animation.ElementEdit{Kind: animation.ElementAddAttachment, Attachment: ids[1]}),
		elementEditOn(ids[1:], animation.ElementEdit{Kind: animation.ElementAddAttachment, Attachment: ids[0]}),
	)

	frame, _, err := editor.GetFrameAtTime(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetFrameAtTime: %v", err)
	}
	first, _ := frame.ElementWithID(ids[0])
	if len(first.Attachments) != 1 || first.Attachments[0] != ids[1] {
		t.Fatalf("first element attachments = %v, want %v", first.Attachments, ids[1])
	}
	second, _ := frame.ElementWithID(ids[1])
	if len(second.Attachments) != 0 {
		t.Fatalf("cyclic attachment was applied: %v", second.Attachments)
	}
}

func TestRemoveAttachmentReversesAdd(t *testing.T) {
	editor := newTestEditor(t)
	ids := paintedLayer(t, editor, 1, 2)
	retired := editor.RetiredEdits()
	ctx := context.Background()

	publishAndWait(t, editor, elementEditOn(ids[:1], animation.ElementEdit{Kind: animation.ElementAddAttachment, Attachment: ids[1]}))
	added := nextRetirement(t, retired)

	publishAndWait(t, editor, added.ReverseEdits...)
	frame, _, err := editor.GetFrameAtTime(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetFrameAtTime: %v", err)
	}
	wrapper, _ := frame.ElementWithID(ids[0])
	if len(wrapper.Attachments) != 0 {
		t.Fatalf("attachments after reverse = %v, want none", wrapper.Attachments)
	}
}

func TestTransformMoveToRecentersShape(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditAddNewLayer, LayerID: 1},
		addKeyFrame(1, 0),
		createCircle(1, 0, 10, 10, 5),
	)
	ids := paintedIDs(t, nextRetirement(t, retired))
	ctx := context.Background()

	publishAndWait(t, editor, elementEditOn(ids, animation.ElementEdit{
		Kind: animation.ElementTransformEdit,
		Transforms: []animation.ElementTransform{
			{Kind: animation.TransformMoveTo, Point: animation.Point{X: 50, Y: 60}},
		},
	}))
	moved := nextRetirement(t, retired)

	frame, _, err := editor.GetFrameAtTime(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetFrameAtTime: %v", err)
	}
	wrapper, _ := frame.ElementWithID(ids[0])
	center := wrapper.Vector.Shape.Shape.Center
	if center.X != 50 || center.Y != 60 {
		t.Fatalf("center after move = %v, want (50,60)", center)
	}

	publishAndWait(t, editor, moved.ReverseEdits...)
	frame, _, err = editor.GetFrameAtTime(ctx, 1, 0)
	if err != nil {
		t.Fatalf("GetFrameAtTime: %v", err)
	}
	wrapper, _ = frame.ElementWithID(ids[0])
	center = wrapper.Vector.Shape.Shape.Center
	if center.X != 10 || center.Y != 10 {
		t.Fatalf("center after reverse = %v, want (10,10)", center)
	}
}

func TestTransformScaleGrowsRadiusAboutCenter(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditAddNewLayer, LayerID: 1},
		addKeyFrame(1, 0),
		createCircle(1, 0, 10, 10, 5),
	)
	ids := paintedIDs(t, nextRetirement(t, retired))

	publishAndWait(t, editor, elementEditOn(ids, animation.ElementEdit{
		Kind: animation.ElementTransformEdit,
		Transforms: []animation.ElementTransform{
			{Kind: animation.TransformScale, Point: animation.Point{X: 2, Y: 2}},
		},
	}))

	frame, _, err := editor.GetFrameAtTime(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("GetFrameAtTime: %v", err)
	}
	wrapper, _ := frame.ElementWithID(ids[0])
	shape := wrapper.Vector.Shape.Shape
	if shape.Radius != 10 {
		t.Fatalf("radius after 2x scale = %v, want 10", shape.Radius)
	}
	if shape.Center.X != 10 || shape.Center.Y != 10 {
		t.Fatalf("scale about center moved the center to %v", shape.Center)
	}
}

func TestMotionElementLifecycle(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()

	publishAndWait(t, editor, animation.AnimationEdit{
		Kind: animation.EditMotion,
		Motion: &animation.MotionEditTarget{
			ID:   animation.UnassignedID(),
			Edit: animation.MotionEdit{Kind: animation.MotionCreate, MotionType: "linear", Origin: animation.Point{X: 1, Y: 2}},
		},
	})
	created := nextRetirement(t, retired)
	id := created.CommittedEdits[0].Motion.ID
	if _, assigned := id.Value(); !assigned {
		t.Fatalf("motion element retired without an assigned ID")
	}
	if len(created.ReverseEdits) != 1 || created.ReverseEdits[0].Motion.Edit.Kind != animation.MotionDelete {
		t.Fatalf("motion create reverse = %+v, want delete", created.ReverseEdits)
	}

	publishAndWait(t, editor, animation.AnimationEdit{
		Kind: animation.EditMotion,
		Motion: &animation.MotionEditTarget{
			ID:   id,
			Edit: animation.MotionEdit{Kind: animation.MotionSetOrigin, Origin: animation.Point{X: 9, Y: 9}},
		},
	})
	origin := nextRetirement(t, retired)
	if origin.ReverseEdits[0].Motion.Edit.Origin.X != 1 {
		t.Fatalf("set origin reverse carries %+v, want the old origin", origin.ReverseEdits[0].Motion.Edit)
	}

	// Deleting a motion element has no creation edit to reverse into.
	publishAndWait(t, editor, animation.AnimationEdit{
		Kind: animation.EditMotion,
		Motion: &animation.MotionEditTarget{
			ID:   id,
			Edit: animation.MotionEdit{Kind: animation.MotionDelete},
		},
	})
	deleted := nextRetirement(t, retired)
	if deleted.ReverseError == nil {
		t.Fatalf("motion delete retired without a reverse error")
	}
}
