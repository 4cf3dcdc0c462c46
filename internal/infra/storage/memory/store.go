// Package memory provides an in-memory implementation of the storage command
// protocol used for tests and ephemeral documents. It is the reference
// implementation: the durable backends mirror its observable behavior.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"animcore/pkg/animation"
)

// Compile-time contract assertion ensuring the store satisfies the backend interface.
var _ animation.Backend = (*Store)(nil)

type keyFrameKey struct {
	layerID uint64
	when    time.Duration
}

type storeState struct {
	properties    string
	hasProperties bool
	editLog       []string
	elements      map[int64]string
	layers        map[uint64]string
	keyFrames     map[uint64]map[time.Duration]struct{}
	// zOrder holds the attached element IDs per keyframe in paint order.
	zOrder map[keyFrameKey][]int64
	// attachments indexes the reverse direction: element -> (layer, time).
	attachments map[int64][]animation.Attachment
}

func newStoreState() storeState {
	return storeState{
		elements:    make(map[int64]string),
		layers:      make(map[uint64]string),
		keyFrames:   make(map[uint64]map[time.Duration]struct{}),
		zOrder:      make(map[keyFrameKey][]int64),
		attachments: make(map[int64][]animation.Attachment),
	}
}

// Store is the in-memory storage backend.
type Store struct {
	mu    sync.Mutex
	state storeState
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newStoreState()}
}

// RunCommands applies a batch of storage commands in order and returns their
// responses in command order.
func (s *Store) RunCommands(_ context.Context, commands []animation.StorageCommand) ([]animation.StorageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	responses := make([]animation.StorageResponse, 0, len(commands))
	for _, cmd := range commands {
		responses = append(responses, s.apply(cmd)...)
	}
	return responses, nil
}

// Close releases nothing for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) apply(cmd animation.StorageCommand) []animation.StorageResponse {
	switch cmd.Kind {
	case animation.CmdWriteAnimationProperties:
		s.state.properties = cmd.Serialized
		s.state.hasProperties = true
		return updated()

	case animation.CmdReadAnimationProperties:
		if !s.state.hasProperties {
			return notFound()
		}
		return []animation.StorageResponse{{
			Kind:       animation.RespAnimationProperties,
			Serialized: s.state.properties,
		}}

	case animation.CmdWriteEdit:
		s.state.editLog = append(s.state.editLog, cmd.Serialized)
		return updated()

	case animation.CmdReadEditLogLength:
		return []animation.StorageResponse{{
			Kind:  animation.RespNumberOfEdits,
			Count: len(s.state.editLog),
		}}

	case animation.CmdReadEdits:
		var responses []animation.StorageResponse
		for idx := cmd.Start; idx < cmd.End && idx < len(s.state.editLog); idx++ {
			if idx < 0 {
				continue
			}
			responses = append(responses, animation.StorageResponse{
				Kind:       animation.RespEdit,
				Index:      idx,
				Serialized: s.state.editLog[idx],
			})
		}
		return responses

	case animation.CmdWriteElement:
		s.state.elements[cmd.ElementID] = cmd.Serialized
		return updated()

	case animation.CmdReadElement:
		serialized, ok := s.state.elements[cmd.ElementID]
		if !ok {
			return notFound()
		}
		return []animation.StorageResponse{{
			Kind:       animation.RespElement,
			ElementID:  cmd.ElementID,
			Serialized: serialized,
		}}

	case animation.CmdDeleteElement:
		delete(s.state.elements, cmd.ElementID)
		s.detachElement(cmd.ElementID)
		return updated()

	case animation.CmdAddLayer:
		// Create-or-replace: the same command persists later property edits.
		s.state.layers[cmd.LayerID] = cmd.Serialized
		if _, ok := s.state.keyFrames[cmd.LayerID]; !ok {
			s.state.keyFrames[cmd.LayerID] = make(map[time.Duration]struct{})
		}
		return updated()

	case animation.CmdDeleteLayer:
		delete(s.state.layers, cmd.LayerID)
		for when := range s.state.keyFrames[cmd.LayerID] {
			s.dropKeyFrame(cmd.LayerID, when)
		}
		delete(s.state.keyFrames, cmd.LayerID)
		return updated()

	case animation.CmdAddKeyFrame:
		frames, ok := s.state.keyFrames[cmd.LayerID]
		if !ok {
			frames = make(map[time.Duration]struct{})
			s.state.keyFrames[cmd.LayerID] = frames
		}
		frames[cmd.When] = struct{}{}
		return updated()

	case animation.CmdDeleteKeyFrame:
		s.dropKeyFrame(cmd.LayerID, cmd.When)
		delete(s.state.keyFrames[cmd.LayerID], cmd.When)
		return updated()

	case animation.CmdAttachElementToLayer:
		key := keyFrameKey{layerID: cmd.LayerID, when: cmd.When}
		s.state.zOrder[key] = append(s.state.zOrder[key], cmd.ElementID)
		s.state.attachments[cmd.ElementID] = append(s.state.attachments[cmd.ElementID], animation.Attachment{
			LayerID: cmd.LayerID,
			When:    cmd.When,
		})
		return updated()

	case animation.CmdDetachElementFromLayer:
		s.detachElement(cmd.ElementID)
		return updated()

	case animation.CmdReadElementsForKeyFrame:
		key := keyFrameKey{layerID: cmd.LayerID, when: cmd.When}
		var responses []animation.StorageResponse
		for _, elementID := range s.state.zOrder[key] {
			serialized, ok := s.state.elements[elementID]
			if !ok {
				continue
			}
			responses = append(responses, animation.StorageResponse{
				Kind:       animation.RespElement,
				ElementID:  elementID,
				Serialized: serialized,
			})
		}
		return responses

	case animation.CmdReadElementAttachments:
		attachments := append([]animation.Attachment(nil), s.state.attachments[cmd.ElementID]...)
		sort.Slice(attachments, func(i, j int) bool {
			if attachments[i].LayerID != attachments[j].LayerID {
				return attachments[i].LayerID < attachments[j].LayerID
			}
			return attachments[i].When < attachments[j].When
		})
		return []animation.StorageResponse{{
			Kind:        animation.RespElementAttachments,
			ElementID:   cmd.ElementID,
			Attachments: attachments,
		}}
	}

	return notFound()
}

// detachElement removes the element from every keyframe z-order it appears in.
func (s *Store) detachElement(elementID int64) {
	for _, attachment := range s.state.attachments[elementID] {
		key := keyFrameKey{layerID: attachment.LayerID, when: attachment.When}
		order := s.state.zOrder[key]
		for i, id := range order {
			if id == elementID {
				s.state.zOrder[key] = append(order[:i], order[i+1:]...)
				break
			}
		}
	}
	delete(s.state.attachments, elementID)
}

// dropKeyFrame removes the keyframe's z-order and the matching reverse index
// entries. Elements themselves stay in storage.
func (s *Store) dropKeyFrame(layerID uint64, when time.Duration) {
	key := keyFrameKey{layerID: layerID, when: when}
	for _, elementID := range s.state.zOrder[key] {
		attachments := s.state.attachments[elementID]
		for i, attachment := range attachments {
			if attachment.LayerID == layerID && attachment.When == when {
				s.state.attachments[elementID] = append(attachments[:i], attachments[i+1:]...)
				break
			}
		}
	}
	delete(s.state.zOrder, key)
}

// EditLogLen reports the current edit log length. Test hook.
func (s *Store) EditLogLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.editLog)
}

func updated() []animation.StorageResponse {
	return []animation.StorageResponse{animation.Updated()}
}

func notFound() []animation.StorageResponse {
	return []animation.StorageResponse{animation.NotFound()}
}
