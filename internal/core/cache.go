package core

import (
	"context"
	"fmt"
	"time"

	"animcore/pkg/animation"
)

// frameRef locates the keyframe an element is currently attached to.
type frameRef struct {
	layerID uint64
	start   time.Duration
}

// cachedFrame is one keyframe's resident state: the z-ordered element IDs,
// bottom to top. Frames start unloaded and are populated from storage on
// first access.
type cachedFrame struct {
	start    time.Duration
	loaded   bool
	elements []int64
}

func (f *cachedFrame) contains(id int64) bool {
	for _, existing := range f.elements {
		if existing == id {
			return true
		}
	}
	return false
}

func (f *cachedFrame) remove(id int64) bool {
	for i, existing := range f.elements {
		if existing == id {
			f.elements = append(f.elements[:i], f.elements[i+1:]...)
			return true
		}
	}
	return false
}

func (f *cachedFrame) indexOf(id int64) int {
	for i, existing := range f.elements {
		if existing == id {
			return i
		}
	}
	return -1
}

// layerState is the resident state of one layer: its persisted shape plus the
// keyframe cache and the brush selection in effect for subsequent strokes.
type layerState struct {
	layer  animation.Layer
	frames map[time.Duration]*cachedFrame

	brushDefinition int64
	hasDefinition   bool
	brushProperties int64
	hasProperties   bool
}

// document is the mutable state exclusively owned by the editor's run loop.
// Nothing outside the loop may touch it.
type document struct {
	backend animation.Backend
	logger  Logger

	props         animation.AnimationProperties
	layers        map[uint64]*layerState
	elements      map[int64]*animation.ElementWrapper
	frameOf       map[int64]frameRef
	nextElementID int64
	editLogLen    int

	failure      error
	undoInAction bool
}

func newDocument(backend animation.Backend, logger Logger) *document {
	return &document{
		backend:       backend,
		logger:        logger,
		layers:        make(map[uint64]*layerState),
		elements:      make(map[int64]*animation.ElementWrapper),
		frameOf:       make(map[int64]frameRef),
		nextElementID: 1,
	}
}

// load reads the persisted document properties and edit log length, writing
// defaults for a fresh document.
func (d *document) load(ctx context.Context) error {
	responses, err := d.backend.RunCommands(ctx, []animation.StorageCommand{
		{Kind: animation.CmdReadAnimationProperties},
		{Kind: animation.CmdReadEditLogLength},
	})
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if len(responses) != 2 {
		return fmt.Errorf("load document: expected 2 responses, got %d", len(responses))
	}
	switch responses[0].Kind {
	case animation.RespAnimationProperties:
		props, err := animation.ParseAnimationProperties(responses[0].Serialized)
		if err != nil {
			return fmt.Errorf("load document: %w", err)
		}
		d.props = props
	case animation.RespNotFound:
		d.props = animation.DefaultAnimationProperties()
		if _, err := d.backend.RunCommands(ctx, []animation.StorageCommand{{
			Kind:       animation.CmdWriteAnimationProperties,
			Serialized: d.props.Serialize(),
		}}); err != nil {
			return fmt.Errorf("write default properties: %w", err)
		}
	default:
		return fmt.Errorf("load document: unexpected response %q", responses[0].Kind)
	}
	if responses[1].Kind != animation.RespNumberOfEdits {
		return fmt.Errorf("load document: unexpected response %q", responses[1].Kind)
	}
	d.editLogLen = responses[1].Count
	return nil
}

// run executes commands against the backend, latching the first failure.
// Once latched, every subsequent run refuses with the stored failure.
func (d *document) run(ctx context.Context, commands []animation.StorageCommand) ([]animation.StorageResponse, error) {
	if d.failure != nil {
		return nil, animation.NewStorageFailure(animation.StorageErrorCannotContinue, d.failure)
	}
	responses, err := d.backend.RunCommands(ctx, commands)
	if err != nil {
		d.failure = err
		return nil, err
	}
	return responses, nil
}

// resolveID assigns a fresh ID when the given one is unassigned, and tracks
// the high-water mark otherwise so assigned IDs from replayed logs never
// collide with fresh ones.
func (d *document) resolveID(id *animation.ElementID) {
	if value, assigned := id.Value(); assigned {
		if value >= d.nextElementID {
			d.nextElementID = value + 1
		}
		return
	}
	*id = animation.AssignedID(d.nextElementID)
	d.nextElementID++
}

// nearestFrame binary-searches the layer's keyframe times for the greatest
// start time at or before when. There is no implicit keyframe at time zero.
func (d *document) nearestFrame(layerID uint64, when time.Duration) (*layerState, *cachedFrame, bool) {
	layer, ok := d.layers[layerID]
	if !ok {
		return nil, nil, false
	}
	start, ok := layer.layer.NearestKeyFrameTime(when)
	if !ok {
		return layer, nil, false
	}
	frame, ok := layer.frames[start]
	if !ok {
		frame = &cachedFrame{start: start}
		layer.frames[start] = frame
	}
	return layer, frame, true
}

// ensureFrame resolves the keyframe covering when and populates it from
// storage if its elements are not yet resident.
func (d *document) ensureFrame(ctx context.Context, layerID uint64, when time.Duration) (*layerState, *cachedFrame, error) {
	layer, frame, ok := d.nearestFrame(layerID, when)
	if !ok {
		return layer, nil, nil
	}
	if frame.loaded {
		return layer, frame, nil
	}
	responses, err := d.run(ctx, []animation.StorageCommand{{
		Kind:    animation.CmdReadElementsForKeyFrame,
		LayerID: layerID,
		When:    frame.start,
	}})
	if err != nil {
		return layer, nil, err
	}
	frame.elements = frame.elements[:0]
	for _, resp := range responses {
		if resp.Kind != animation.RespElement {
			continue
		}
		wrapper := animation.ParseElement(resp.ElementID, resp.Serialized)
		d.elements[resp.ElementID] = &wrapper
		d.noteAssigned(resp.ElementID)
		frame.elements = append(frame.elements, resp.ElementID)
		d.frameOf[resp.ElementID] = frameRef{layerID: layerID, start: frame.start}
	}
	frame.loaded = true
	return layer, frame, nil
}

func (d *document) noteAssigned(id int64) {
	if id >= d.nextElementID {
		d.nextElementID = id + 1
	}
}

// loadElement returns the wrapper for an assigned ID, reading it from storage
// when not resident. A missing element yields (nil, false, nil).
func (d *document) loadElement(ctx context.Context, id int64) (*animation.ElementWrapper, bool, error) {
	if wrapper, ok := d.elements[id]; ok {
		return wrapper, true, nil
	}
	responses, err := d.run(ctx, []animation.StorageCommand{{
		Kind:      animation.CmdReadElement,
		ElementID: id,
	}})
	if err != nil {
		return nil, false, err
	}
	if len(responses) != 1 || responses[0].Kind != animation.RespElement {
		return nil, false, nil
	}
	wrapper := animation.ParseElement(id, responses[0].Serialized)
	d.elements[id] = &wrapper
	d.noteAssigned(id)
	return &wrapper, true, nil
}

// evictLayer drops a removed layer's cache entries and the resident elements
// attached to its keyframes.
func (d *document) evictLayer(layerID uint64) {
	layer, ok := d.layers[layerID]
	if !ok {
		return
	}
	for _, frame := range layer.frames {
		for _, id := range frame.elements {
			delete(d.elements, id)
			delete(d.frameOf, id)
		}
	}
	delete(d.layers, layerID)
}
