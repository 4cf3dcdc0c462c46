package core

import (
	"context"
	"testing"
	"time"

	"animcore/pkg/animation"
)

func undoEdit(kind animation.UndoEditKind) animation.AnimationEdit {
	return animation.AnimationEdit{Kind: animation.EditUndo, Undo: &animation.UndoEdit{Kind: kind}}
}

func setSize(w, h float64) animation.AnimationEdit {
	return animation.AnimationEdit{Kind: animation.EditSetSize, Width: w, Height: h}
}

func performUndo(original, actions []animation.AnimationEdit) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind: animation.EditUndo,
		Undo: &animation.UndoEdit{Kind: animation.UndoPerformUndo, Original: original, Actions: actions},
	}
}

func nextRetirement(t *testing.T, retired <-chan RetiredEdit) RetiredEdit {
	t.Helper()
	select {
	case r := <-retired:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for retirement")
		return RetiredEdit{}
	}
}

func TestPerformUndoRewritesToCompletedUndo(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	ctx := context.Background()

	publishAndWait(t, editor, setSize(100, 100))
	forward := nextRetirement(t, retired)
	if len(forward.ReverseEdits) == 0 {
		t.Fatalf("resize produced no reverse edits")
	}

	publishAndWait(t, editor, performUndo(forward.CommittedEdits, forward.ReverseEdits))
	outcome := nextRetirement(t, retired)

	if len(outcome.CommittedEdits) != 1 || outcome.CommittedEdits[0].Undo == nil {
		t.Fatalf("undo retirement = %+v", outcome.CommittedEdits)
	}
	if got := outcome.CommittedEdits[0].Undo.Kind; got != animation.UndoCompletedUndo {
		t.Fatalf("undo outcome = %s, want completed_undo", got)
	}
	if width, height, _ := editor.Size(ctx); width != 1920 || height != 1080 {
		t.Fatalf("canvas after undo = %vx%v, want defaults restored", width, height)
	}
}

func TestUndoReverseIsTheRedo(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	ctx := context.Background()

	publishAndWait(t, editor, setSize(100, 100))
	forward := nextRetirement(t, retired)

	publishAndWait(t, editor, performUndo(forward.CommittedEdits, forward.ReverseEdits))
	undone := nextRetirement(t, retired)
	if undone.CommittedEdits[0].Undo.Kind != animation.UndoCompletedUndo {
		t.Fatalf("undo failed: %+v", undone.CommittedEdits[0].Undo)
	}

	// The reverse of a completed undo is the original forward action:
	// replaying it as another undo is a redo. The log tail to verify is the
	// framed action group the undo wrote.
	framed := append([]animation.AnimationEdit{undoEdit(animation.UndoBeginAction)}, undone.CommittedEdits[0].Undo.Completed...)
	framed = append(framed, undoEdit(animation.UndoFinishAction))
	publishAndWait(t, editor, performUndo(framed, undone.ReverseEdits))
	redone := nextRetirement(t, retired)
	if redone.CommittedEdits[0].Undo.Kind != animation.UndoCompletedUndo {
		t.Fatalf("redo failed: %+v", redone.CommittedEdits[0].Undo)
	}
	if width, _, _ := editor.Size(ctx); width != 100 {
		t.Fatalf("canvas after redo = %v, want 100", width)
	}
}

func TestPerformUndoWithEmptyOriginalFails(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()

	publishAndWait(t, editor, performUndo(nil, nil))
	outcome := nextRetirement(t, retired)
	undo := outcome.CommittedEdits[0].Undo
	if undo.Kind != animation.UndoFailedUndo || undo.Reason != animation.UndoNothingToUndo {
		t.Fatalf("outcome = %+v, want failed_undo/nothing_to_undo", undo)
	}
}

func TestPerformUndoAgainstShortLogFails(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()

	publishAndWait(t, editor, performUndo([]animation.AnimationEdit{setSize(1, 1)}, nil))
	outcome := nextRetirement(t, retired)
	undo := outcome.CommittedEdits[0].Undo
	if undo.Kind != animation.UndoFailedUndo || undo.Reason != animation.UndoEditLogTooShort {
		t.Fatalf("outcome = %+v, want failed_undo/edit_log_too_short", undo)
	}
}

func TestPerformUndoWithMismatchedOriginalFails(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	ctx := context.Background()

	publishAndWait(t, editor, setSize(100, 100))
	nextRetirement(t, retired)

	// Claim to undo an action the log never saw.
	publishAndWait(t, editor, performUndo([]animation.AnimationEdit{setSize(7, 7)}, []animation.AnimationEdit{setSize(1920, 1080)}))
	outcome := nextRetirement(t, retired)
	undo := outcome.CommittedEdits[0].Undo
	if undo.Kind != animation.UndoFailedUndo || undo.Reason != animation.UndoOriginalActionsDoNotMatch {
		t.Fatalf("outcome = %+v, want failed_undo/original_actions_do_not_match", undo)
	}
	if width, _, _ := editor.Size(ctx); width != 100 {
		t.Fatalf("failed undo still mutated the document: width = %v", width)
	}
}

func TestFailedUndoLeavesDocumentUnchanged(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	ctx := context.Background()

	publishAndWait(t, editor, setSize(100, 100))
	forward := nextRetirement(t, retired)
	logLen, err := editor.EditLogLength(ctx)
	if err != nil {
		t.Fatalf("EditLogLength: %v", err)
	}

	// A valid action followed by a nested undo edit: the whole group must be
	// rejected before the valid action applies anything.
	actions := append(append([]animation.AnimationEdit(nil), forward.ReverseEdits...), undoEdit(animation.UndoPrepareToUndo))
	publishAndWait(t, editor, performUndo(forward.CommittedEdits, actions))
	outcome := nextRetirement(t, retired)

	undo := outcome.CommittedEdits[0].Undo
	if undo == nil || undo.Kind != animation.UndoFailedUndo || undo.Reason != animation.UndoBadEditingSequence {
		t.Fatalf("undo outcome = %+v, want failed_undo with bad editing sequence", undo)
	}
	if width, height, _ := editor.Size(ctx); width != 100 || height != 100 {
		t.Fatalf("canvas after failed undo = %vx%v, want 100x100 unchanged", width, height)
	}
	if after, _ := editor.EditLogLength(ctx); after != logLen {
		t.Fatalf("edit log grew from %d to %d on a failed undo", logLen, after)
	}
}

func TestPerformUndoInsideActionMarkersFails(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()

	publishAndWait(t, editor, setSize(100, 100))
	forward := nextRetirement(t, retired)

	publishAndWait(t, editor,
		undoEdit(animation.UndoBeginAction),
		performUndo(forward.CommittedEdits, forward.ReverseEdits),
		undoEdit(animation.UndoFinishAction),
	)
	outcome := nextRetirement(t, retired)
	undo := outcome.CommittedEdits[1].Undo
	if undo.Kind != animation.UndoFailedUndo || undo.Reason != animation.UndoBadEditingSequence {
		t.Fatalf("outcome = %+v, want failed_undo/bad_editing_sequence", undo)
	}
}

func TestUndoActionsAreLoggedFramedAndPerformUndoIsNot(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	ctx := context.Background()

	publishAndWait(t, editor, setSize(100, 100))
	forward := nextRetirement(t, retired)
	before, err := editor.EditLogLength(ctx)
	if err != nil {
		t.Fatalf("EditLogLength: %v", err)
	}

	publishAndWait(t, editor, performUndo(forward.CommittedEdits, forward.ReverseEdits))
	nextRetirement(t, retired)

	after, err := editor.EditLogLength(ctx)
	if err != nil {
		t.Fatalf("EditLogLength: %v", err)
	}
	// begin marker + one undo action + finish marker; the perform-undo edit
	// itself is never persisted.
	if after != before+3 {
		t.Fatalf("edit log grew by %d, want 3", after-before)
	}
}

func TestUndoMarkersAreForwardedAndPersisted(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	ctx := context.Background()

	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditUndo, Undo: &animation.UndoEdit{Kind: animation.UndoPrepareToUndo, Name: "resize"}},
	)
	r := nextRetirement(t, retired)
	if r.CommittedEdits[0].Undo.Kind != animation.UndoPrepareToUndo || r.CommittedEdits[0].Undo.Name != "resize" {
		t.Fatalf("marker rewritten in flight: %+v", r.CommittedEdits[0].Undo)
	}
	if length, _ := editor.EditLogLength(ctx); length != 1 {
		t.Fatalf("marker not persisted, log length = %d", length)
	}
}
