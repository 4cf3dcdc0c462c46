package core

import (
	"context"
	"errors"

	"animcore/pkg/animation"
	"animcore/pkg/animation/encoding"
)

// handleUndoEdit processes one undo edit. Markers (PrepareToUndo,
// BeginAction, FinishAction) are persisted to the log and forwarded
// unchanged. PerformUndo runs the verify-then-replace protocol: the log tail
// is read back and compared against the original actions before any undo
// action applies, and the edit itself is rewritten in place to CompletedUndo
// or FailedUndo before retirement. PerformUndo is never persisted; the undo
// actions it applies are, framed by BeginAction/FinishAction markers, which
// keeps the log a replayable history.
//
// The returned reverse edits of a completed undo are the original actions:
// re-publishing them as a PerformUndo is a redo.
func (d *document) handleUndoEdit(ctx context.Context, edit *animation.AnimationEdit, pending *pendingChanges) (animation.ReversedEdits, error) {
	undo := edit.Undo
	switch undo.Kind {
	case animation.UndoPrepareToUndo, animation.UndoCompletedUndo, animation.UndoFailedUndo:
		pending.appendEdit(encoding.MarshalEdit(*edit))
		return nil, nil

	case animation.UndoBeginAction:
		d.undoInAction = true
		pending.appendEdit(encoding.MarshalEdit(*edit))
		return nil, nil

	case animation.UndoFinishAction:
		d.undoInAction = false
		pending.appendEdit(encoding.MarshalEdit(*edit))
		return nil, nil

	case animation.UndoPerformUndo:
		return d.performUndo(ctx, edit, pending)
	}
	d.logger.Warn("unknown undo edit ignored", "kind", undo.Kind)
	return nil, nil
}

func (d *document) performUndo(ctx context.Context, edit *animation.AnimationEdit, pending *pendingChanges) (animation.ReversedEdits, error) {
	undo := edit.Undo

	fail := func(reason animation.UndoFailureReason) (animation.ReversedEdits, error) {
		d.logger.Warn("undo failed", "reason", reason)
		edit.Undo = &animation.UndoEdit{Kind: animation.UndoFailedUndo, Reason: reason}
		return nil, nil
	}

	if d.undoInAction {
		return fail(animation.UndoBadEditingSequence)
	}
	if len(undo.Original) == 0 {
		return fail(animation.UndoNothingToUndo)
	}
	// Every action must form part of a replayable action group; reject the
	// whole undo before anything applies or is logged.
	for i := range undo.Actions {
		if undo.Actions[i].Kind == animation.EditUndo || undo.Actions[i].MissingPayload() {
			return fail(animation.UndoBadEditingSequence)
		}
	}

	if reason, ok := d.verifyLogTail(ctx, undo.Original); !ok {
		if d.failure != nil {
			return fail(animation.UndoStorageError)
		}
		return fail(reason)
	}

	// Verified: apply the undo actions through the normal dispatch path,
	// logging them framed as one action group.
	actions := append([]animation.AnimationEdit(nil), undo.Actions...)
	pending.appendEdit(encoding.MarshalEdit(animation.AnimationEdit{
		Kind: animation.EditUndo,
		Undo: &animation.UndoEdit{Kind: animation.UndoBeginAction},
	}))
	for i := range actions {
		if _, err := d.applyEdit(ctx, &actions[i], pending); err != nil {
			if errors.Is(err, ErrNotReversible) {
				// The undo action applied; only its own inverse is missing,
				// which a history rewrite never needs.
				d.logger.Debug("undo action applied without inverse")
			} else {
				// A storage error mid-group leaves the document partially
				// undone; propagate it so the batch aborts unflushed and the
				// failure latches until ClearError.
				edit.Undo = &animation.UndoEdit{Kind: animation.UndoFailedUndo, Reason: animation.UndoStorageError}
				return nil, err
			}
		}
		pending.appendEdit(encoding.MarshalEdit(actions[i]))
	}
	pending.appendEdit(encoding.MarshalEdit(animation.AnimationEdit{
		Kind: animation.EditUndo,
		Undo: &animation.UndoEdit{Kind: animation.UndoFinishAction},
	}))

	reverse := animation.ReversedEdits(append([]animation.AnimationEdit(nil), undo.Original...))
	edit.Undo = &animation.UndoEdit{Kind: animation.UndoCompletedUndo, Completed: actions}
	return reverse, nil
}

// verifyLogTail reads the last len(original) persisted edits and compares
// them, serialized form for serialized form, against the actions the undo
// claims to reverse.
func (d *document) verifyLogTail(ctx context.Context, original []animation.AnimationEdit) (animation.UndoFailureReason, bool) {
	if d.editLogLen < len(original) {
		return animation.UndoEditLogTooShort, false
	}
	responses, err := d.run(ctx, []animation.StorageCommand{{
		Kind:  animation.CmdReadEdits,
		Start: d.editLogLen - len(original),
		End:   d.editLogLen,
	}})
	if err != nil {
		return animation.UndoStorageError, false
	}
	if len(responses) != len(original) {
		return animation.UndoCannotReadOriginalActions, false
	}
	for i, resp := range responses {
		if resp.Kind != animation.RespEdit {
			return animation.UndoCannotReadOriginalActions, false
		}
		if _, err := encoding.UnmarshalEdit(resp.Serialized); err != nil {
			return animation.UndoCannotReadOriginalActions, false
		}
		if resp.Serialized != encoding.MarshalEdit(original[i]) {
			return animation.UndoOriginalActionsDoNotMatch, false
		}
	}
	return "", true
}
