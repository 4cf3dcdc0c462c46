package animation

import "fmt"

// UndoFailureReason explains why a PerformUndo was rewritten to FailedUndo.
type UndoFailureReason string

// Undo failure reasons.
const (
	// UndoNotSupported indicates the reversal path hit an element kind that
	// cannot be reversed (transformed or motion elements).
	UndoNotSupported UndoFailureReason = "not_supported"
	// UndoNothingToUndo indicates there is no undoable action.
	UndoNothingToUndo UndoFailureReason = "nothing_to_undo"
	// UndoNothingToRedo indicates there is no redoable action.
	UndoNothingToRedo UndoFailureReason = "nothing_to_redo"
	// UndoStorageError indicates the storage layer failed during verification
	// or history rewrite.
	UndoStorageError UndoFailureReason = "storage_error"
	// UndoEditLogTooShort indicates the log holds fewer edits than the undo
	// claims to reverse.
	UndoEditLogTooShort UndoFailureReason = "edit_log_too_short"
	// UndoCannotReadOriginalActions indicates the log tail could not be read
	// back or parsed.
	UndoCannotReadOriginalActions UndoFailureReason = "cannot_read_original_actions"
	// UndoOriginalActionsDoNotMatch indicates the log tail differs from the
	// actions the undo expected to reverse.
	UndoOriginalActionsDoNotMatch UndoFailureReason = "original_actions_do_not_match"
	// UndoBadEditingSequence indicates undo edits arrived in an order the
	// state machine does not accept.
	UndoBadEditingSequence UndoFailureReason = "bad_editing_sequence"
)

// StorageErrorKind classifies storage backend failures.
type StorageErrorKind string

// Storage failure classes. All of them map to UndoStorageError when they
// surface through the undo subsystem.
const (
	StorageErrorGeneral            StorageErrorKind = "general"
	StorageErrorFailedToInitialise StorageErrorKind = "failed_to_initialise"
	StorageErrorCannotContinue     StorageErrorKind = "cannot_continue_after_error"
)

// StorageFailure is the error type surfaced by storage backends and latched
// by the dispatcher.
type StorageFailure struct {
	Kind StorageErrorKind
	Err  error
}

func (e *StorageFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage failure: %s", e.Kind)
	}
	return fmt.Sprintf("storage failure (%s): %v", e.Kind, e.Err)
}

func (e *StorageFailure) Unwrap() error {
	return e.Err
}

// NewStorageFailure wraps err with a failure class.
func NewStorageFailure(kind StorageErrorKind, err error) *StorageFailure {
	return &StorageFailure{Kind: kind, Err: err}
}

// UndoReason maps a storage failure onto its undo failure reason.
func (e *StorageFailure) UndoReason() UndoFailureReason {
	return UndoStorageError
}
