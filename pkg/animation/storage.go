package animation

import (
	"context"
	"time"
)

// StorageCommandKind discriminates storage protocol requests.
type StorageCommandKind string

// Storage protocol requests. The editing core never touches a concrete
// storage engine directly; this enumeration is the entire write/read surface
// it depends on.
const (
	CmdWriteAnimationProperties StorageCommandKind = "write_animation_properties"
	CmdReadAnimationProperties  StorageCommandKind = "read_animation_properties"
	CmdWriteEdit                StorageCommandKind = "write_edit"
	CmdReadEditLogLength        StorageCommandKind = "read_edit_log_length"
	CmdReadEdits                StorageCommandKind = "read_edits"
	CmdWriteElement             StorageCommandKind = "write_element"
	CmdReadElement              StorageCommandKind = "read_element"
	CmdDeleteElement            StorageCommandKind = "delete_element"
	CmdAddLayer                 StorageCommandKind = "add_layer"
	CmdDeleteLayer              StorageCommandKind = "delete_layer"
	CmdAddKeyFrame              StorageCommandKind = "add_key_frame"
	CmdDeleteKeyFrame           StorageCommandKind = "delete_key_frame"
	CmdAttachElementToLayer     StorageCommandKind = "attach_element_to_layer"
	CmdDetachElementFromLayer   StorageCommandKind = "detach_element_from_layer"
	CmdReadElementsForKeyFrame  StorageCommandKind = "read_elements_for_key_frame"
	CmdReadElementAttachments   StorageCommandKind = "read_element_attachments"
)

// StorageCommand is one request of the storage protocol. The fields used
// depend on Kind:
//
//	WriteAnimationProperties: Serialized
//	WriteEdit:                Serialized
//	ReadEdits:                Start, End (half-open [Start, End))
//	WriteElement:             ElementID, Serialized
//	ReadElement/DeleteElement: ElementID
//	AddLayer:                 LayerID, Serialized (properties blob)
//	DeleteLayer:              LayerID
//	AddKeyFrame/DeleteKeyFrame: LayerID, When
//	AttachElementToLayer:     LayerID, ElementID, When
//	DetachElementFromLayer:   ElementID
//	ReadElementsForKeyFrame:  LayerID, When
//	ReadElementAttachments:   ElementID
type StorageCommand struct {
	Kind       StorageCommandKind
	LayerID    uint64
	ElementID  int64
	When       time.Duration
	Serialized string
	Start      int
	End        int
}

// StorageResponseKind discriminates storage protocol responses.
type StorageResponseKind string

// Storage protocol responses.
const (
	RespUpdated             StorageResponseKind = "updated"
	RespNotFound            StorageResponseKind = "not_found"
	RespAnimationProperties StorageResponseKind = "animation_properties"
	RespNumberOfEdits       StorageResponseKind = "number_of_edits"
	RespEdit                StorageResponseKind = "edit"
	RespElement             StorageResponseKind = "element"
	RespElementAttachments  StorageResponseKind = "element_attachments"
)

// StorageResponse is one response of the storage protocol. Write-style
// commands yield exactly one Updated; ReadEdits yields one Edit per index in
// the requested range and ReadElementsForKeyFrame yields one Element per
// attached element in z-order. All other reads yield their payload or
// NotFound.
type StorageResponse struct {
	Kind        StorageResponseKind
	Serialized  string
	Count       int
	Index       int
	ElementID   int64
	Attachments []Attachment
}

// Backend executes batches of storage commands against a persistence engine.
// Commands in one RunCommands call are applied atomically and in order;
// responses are appended in command order. Implementations must be safe for
// use by a single caller at a time (the dispatcher serializes access).
type Backend interface {
	RunCommands(ctx context.Context, commands []StorageCommand) ([]StorageResponse, error)
	Close() error
}

// Updated is the canonical write acknowledgement.
func Updated() StorageResponse {
	return StorageResponse{Kind: RespUpdated}
}

// NotFound is the canonical missing-key response.
func NotFound() StorageResponse {
	return StorageResponse{Kind: RespNotFound}
}
