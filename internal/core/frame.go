package core

import (
	"context"
	"time"

	"animcore/pkg/animation"
)

// Frame is an immutable snapshot of one keyframe's contents, safe to hand to
// rendering and UI code outside the editor's owner goroutine. Element
// wrappers are deep copies; mutating them never touches document state.
type Frame struct {
	LayerID uint64
	Start   time.Duration

	elements []animation.ElementWrapper
	extra    map[int64]animation.ElementWrapper
}

// VectorElements returns the frame's elements in z-order, bottom to top.
func (f Frame) VectorElements() []animation.ElementWrapper {
	return append([]animation.ElementWrapper(nil), f.elements...)
}

// ElementWithID returns the element with the given ID, searching the frame's
// z-order first and then the frameless elements it references.
func (f Frame) ElementWithID(id animation.ElementID) (animation.ElementWrapper, bool) {
	value, assigned := id.Value()
	if !assigned {
		return animation.ElementWrapper{}, false
	}
	for _, wrapper := range f.elements {
		if w, _ := wrapper.ID.Value(); w == value {
			return wrapper.Clone(), true
		}
	}
	if wrapper, ok := f.extra[value]; ok {
		return wrapper.Clone(), true
	}
	return animation.ElementWrapper{}, false
}

// AttachedElements resolves the attachment back-references of the element
// with the given ID.
func (f Frame) AttachedElements(id animation.ElementID) []animation.ElementWrapper {
	wrapper, ok := f.ElementWithID(id)
	if !ok {
		return nil
	}
	var out []animation.ElementWrapper
	for _, attachment := range wrapper.Attachments {
		if attached, ok := f.ElementWithID(attachment); ok {
			out = append(out, attached)
		}
	}
	return out
}

// BrushState is the brush configuration in effect for one element, assembled
// from its brush definition and brush properties attachments.
type BrushState struct {
	Definition    animation.BrushDefinition
	Style         animation.BrushDrawingStyle
	Properties    animation.BrushProperties
	HasDefinition bool
	HasProperties bool
}

// ApplyPropertiesForElement resolves the brush state an element should be
// rendered with.
func (f Frame) ApplyPropertiesForElement(id animation.ElementID) BrushState {
	var state BrushState
	for _, attached := range f.AttachedElements(id) {
		switch attached.Vector.Kind {
		case animation.VectorBrushDefinition:
			if attached.Vector.BrushDefinition != nil {
				state.Definition = attached.Vector.BrushDefinition.Definition
				state.Style = attached.Vector.BrushDefinition.Style
				state.HasDefinition = true
			}
		case animation.VectorBrushProperties:
			if attached.Vector.BrushProperties != nil {
				state.Properties = attached.Vector.BrushProperties.Properties
				state.HasProperties = true
			}
		}
	}
	return state
}

// snapshotFrame builds a Frame for the keyframe covering when, loading it
// from storage if needed. A missing keyframe yields ok == false.
func (d *document) snapshotFrame(ctx context.Context, layerID uint64, when time.Duration) (Frame, bool, error) {
	_, frame, err := d.ensureFrame(ctx, layerID, when)
	if err != nil {
		return Frame{}, false, err
	}
	if frame == nil {
		return Frame{}, false, nil
	}

	snapshot := Frame{
		LayerID: layerID,
		Start:   frame.start,
		extra:   make(map[int64]animation.ElementWrapper),
	}
	for _, id := range frame.elements {
		wrapper, ok := d.elements[id]
		if !ok {
			continue
		}
		snapshot.elements = append(snapshot.elements, wrapper.Clone())
		// Pull in frameless attachments (brush definitions and properties)
		// so the snapshot is self-contained.
		for _, attachment := range wrapper.Attachments {
			value, assigned := attachment.Value()
			if !assigned {
				continue
			}
			if _, seen := snapshot.extra[value]; seen {
				continue
			}
			attached, ok, err := d.loadElement(ctx, value)
			if err != nil {
				return Frame{}, false, err
			}
			if ok && !frame.contains(value) {
				snapshot.extra[value] = attached.Clone()
			}
		}
	}
	return snapshot, true, nil
}
