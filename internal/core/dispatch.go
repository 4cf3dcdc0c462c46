package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"animcore/pkg/animation"
)

// ErrNotReversible marks a forward edit whose inverse cannot be expressed as
// an edit sequence. The forward edit still applies; only the generated
// reversal is missing. Transformed and motion elements (and the legacy
// region/transformation kinds nothing can recreate) hit this path.
var ErrNotReversible = errors.New("edit is not reversible")

// applyEdit applies one edit against the document, appending the produced
// storage commands to pending and returning the reverse edit sequence.
// Unresolvable targets are dropped without effect and logged at Warn; a
// returned error wrapping ErrNotReversible means the edit applied but its
// inverse could not be constructed.
func (d *document) applyEdit(ctx context.Context, edit *animation.AnimationEdit, pending *pendingChanges) (animation.ReversedEdits, error) {
	switch edit.Kind {
	case animation.EditSetSize:
		reverse := animation.ReversedEdits{{
			Kind:   animation.EditSetSize,
			Width:  d.props.Width,
			Height: d.props.Height,
		}}
		d.props.Width = edit.Width
		d.props.Height = edit.Height
		d.writeProperties(pending)
		return reverse, nil

	case animation.EditSetFrameLength:
		reverse := animation.ReversedEdits{{
			Kind:     animation.EditSetFrameLength,
			Duration: d.props.FrameLength,
		}}
		d.props.FrameLength = edit.Duration
		d.writeProperties(pending)
		return reverse, nil

	case animation.EditSetLength:
		reverse := animation.ReversedEdits{{
			Kind:     animation.EditSetLength,
			Duration: d.props.Duration,
		}}
		d.props.Duration = edit.Duration
		d.writeProperties(pending)
		return reverse, nil

	case animation.EditAddNewLayer:
		if _, exists := d.layers[edit.LayerID]; exists {
			d.logger.Warn("add layer ignored: layer already exists", "layer", edit.LayerID)
			return nil, nil
		}
		props := animation.DefaultLayerProperties()
		d.layers[edit.LayerID] = &layerState{
			layer:  animation.Layer{ID: edit.LayerID, Properties: props},
			frames: make(map[time.Duration]*cachedFrame),
		}
		pending.structuralCommand(animation.StorageCommand{
			Kind:       animation.CmdAddLayer,
			LayerID:    edit.LayerID,
			Serialized: props.Serialize(),
		})
		return animation.ReversedEdits{{Kind: animation.EditRemoveLayer, LayerID: edit.LayerID}}, nil

	case animation.EditRemoveLayer:
		return d.removeLayer(ctx, edit.LayerID, pending)

	case animation.EditLayer:
		if edit.Layer == nil {
			d.logger.Warn("layer edit without target ignored")
			return nil, nil
		}
		return d.applyLayerEdit(ctx, edit.Layer, pending)

	case animation.EditElement:
		if edit.Element == nil {
			d.logger.Warn("element edit without target ignored")
			return nil, nil
		}
		return d.applyElementEdit(ctx, edit.Element, pending)

	case animation.EditMotion:
		if edit.Motion == nil {
			d.logger.Warn("motion edit without target ignored")
			return nil, nil
		}
		return d.applyMotionEdit(ctx, edit.Motion, pending)

	case animation.EditUndo:
		// Undo edits are routed by the run loop before dispatch; marker kinds
		// reaching this point are document-state no-ops on replay.
		return nil, nil
	}
	return nil, fmt.Errorf("unknown edit kind %q", edit.Kind)
}

func (d *document) writeProperties(pending *pendingChanges) {
	pending.structuralCommand(animation.StorageCommand{
		Kind:       animation.CmdWriteAnimationProperties,
		Serialized: d.props.Serialize(),
	})
}

func (d *document) removeLayer(ctx context.Context, layerID uint64, pending *pendingChanges) (animation.ReversedEdits, error) {
	layer, ok := d.layers[layerID]
	if !ok {
		d.logger.Warn("remove layer ignored: no such layer", "layer", layerID)
		return nil, nil
	}

	reverse := animation.ReversedEdits{
		{Kind: animation.EditAddNewLayer, LayerID: layerID},
		layerPropertyEdit(layerID, animation.LayerEdit{Kind: animation.LayerEditSetName, Name: layer.layer.Properties.Name}),
		layerPropertyEdit(layerID, animation.LayerEdit{Kind: animation.LayerEditSetOrdering, Ordering: layer.layer.Properties.Ordering}),
		layerPropertyEdit(layerID, animation.LayerEdit{Kind: animation.LayerEditSetAlpha, Alpha: layer.layer.Properties.Alpha}),
	}
	var reverseErr error
	for _, start := range append([]time.Duration(nil), layer.layer.KeyFrames...) {
		_, frame, err := d.ensureFrame(ctx, layerID, start)
		if err != nil {
			return nil, err
		}
		reverse = append(reverse, layerPropertyEdit(layerID, animation.LayerEdit{
			Kind: animation.LayerEditAddKeyFrame,
			When: start,
		}))
		if frame == nil {
			continue
		}
		for _, id := range frame.elements {
			wrapper := d.elements[id]
			if wrapper == nil {
				continue
			}
			recreate, err := d.recreationEdits(*wrapper)
			if err != nil {
				reverseErr = err
				continue
			}
			reverse = append(reverse, recreate...)
		}
	}

	for _, frame := range layer.frames {
		for _, id := range frame.elements {
			pending.deleteElement(id)
		}
	}
	pending.structuralCommand(animation.StorageCommand{
		Kind:    animation.CmdDeleteLayer,
		LayerID: layerID,
	})
	d.evictLayer(layerID)
	if reverseErr != nil {
		return nil, reverseErr
	}
	return reverse, nil
}

func layerPropertyEdit(layerID uint64, edit animation.LayerEdit) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind:  animation.EditLayer,
		Layer: &animation.LayerEditTarget{LayerID: layerID, Edit: edit},
	}
}

func (d *document) applyLayerEdit(ctx context.Context, target *animation.LayerEditTarget, pending *pendingChanges) (animation.ReversedEdits, error) {
	layer, ok := d.layers[target.LayerID]
	if !ok {
		d.logger.Warn("layer edit ignored: no such layer", "layer", target.LayerID, "edit", target.Edit.Kind)
		return nil, nil
	}

	edit := &target.Edit
	switch edit.Kind {
	case animation.LayerEditAddKeyFrame:
		if !layer.layer.AddKeyFrameTime(edit.When) {
			d.logger.Warn("add key frame ignored: time already present", "layer", target.LayerID, "when", edit.When)
			return nil, nil
		}
		layer.frames[edit.When] = &cachedFrame{start: edit.When, loaded: true}
		pending.structuralCommand(animation.StorageCommand{
			Kind:    animation.CmdAddKeyFrame,
			LayerID: target.LayerID,
			When:    edit.When,
		})
		return animation.ReversedEdits{layerPropertyEdit(target.LayerID, animation.LayerEdit{
			Kind: animation.LayerEditRemoveKeyFrame,
			When: edit.When,
		})}, nil

	case animation.LayerEditRemoveKeyFrame:
		return d.removeKeyFrame(ctx, layer, target.LayerID, edit.When, pending)

	case animation.LayerEditSetName:
		reverse := animation.ReversedEdits{layerPropertyEdit(target.LayerID, animation.LayerEdit{
			Kind: animation.LayerEditSetName,
			Name: layer.layer.Properties.Name,
		})}
		layer.layer.Properties.Name = edit.Name
		d.writeLayerProperties(layer, target.LayerID, pending)
		return reverse, nil

	case animation.LayerEditSetOrdering:
		reverse := animation.ReversedEdits{layerPropertyEdit(target.LayerID, animation.LayerEdit{
			Kind:     animation.LayerEditSetOrdering,
			Ordering: layer.layer.Properties.Ordering,
		})}
		layer.layer.Properties.Ordering = edit.Ordering
		d.writeLayerProperties(layer, target.LayerID, pending)
		return reverse, nil

	case animation.LayerEditSetAlpha:
		reverse := animation.ReversedEdits{layerPropertyEdit(target.LayerID, animation.LayerEdit{
			Kind:  animation.LayerEditSetAlpha,
			Alpha: layer.layer.Properties.Alpha,
		})}
		layer.layer.Properties.Alpha = edit.Alpha
		d.writeLayerProperties(layer, target.LayerID, pending)
		return reverse, nil

	case animation.LayerEditPaint:
		if edit.Paint == nil {
			d.logger.Warn("paint edit without payload ignored", "layer", target.LayerID)
			return nil, nil
		}
		return d.applyPaintEdit(ctx, layer, target.LayerID, edit.When, edit.Paint, pending)

	case animation.LayerEditPath:
		if edit.Path == nil {
			d.logger.Warn("path edit without payload ignored", "layer", target.LayerID)
			return nil, nil
		}
		return d.applyPathEdit(ctx, layer, target.LayerID, edit.When, edit.Path, pending)
	}
	return nil, fmt.Errorf("unknown layer edit kind %q", edit.Kind)
}

func (d *document) writeLayerProperties(layer *layerState, layerID uint64, pending *pendingChanges) {
	pending.structuralCommand(animation.StorageCommand{
		Kind:       animation.CmdAddLayer,
		LayerID:    layerID,
		Serialized: layer.layer.Properties.Serialize(),
	})
}

func (d *document) removeKeyFrame(ctx context.Context, layer *layerState, layerID uint64, when time.Duration, pending *pendingChanges) (animation.ReversedEdits, error) {
	found := false
	for _, start := range layer.layer.KeyFrames {
		if start == when {
			found = true
			break
		}
	}
	if !found {
		d.logger.Warn("remove key frame ignored: no such time", "layer", layerID, "when", when)
		return nil, nil
	}

	_, frame, err := d.ensureFrame(ctx, layerID, when)
	if err != nil {
		return nil, err
	}

	reverse := animation.ReversedEdits{layerPropertyEdit(layerID, animation.LayerEdit{
		Kind: animation.LayerEditAddKeyFrame,
		When: when,
	})}
	var reverseErr error
	if frame != nil {
		for _, id := range frame.elements {
			wrapper := d.elements[id]
			if wrapper == nil {
				continue
			}
			recreate, err := d.recreationEdits(*wrapper)
			if err != nil {
				reverseErr = err
				continue
			}
			reverse = append(reverse, recreate...)
		}
		for _, id := range append([]int64(nil), frame.elements...) {
			pending.deleteElement(id)
			delete(d.elements, id)
			delete(d.frameOf, id)
		}
	}
	layer.layer.RemoveKeyFrameTime(when)
	delete(layer.frames, when)
	pending.structuralCommand(animation.StorageCommand{
		Kind:    animation.CmdDeleteKeyFrame,
		LayerID: layerID,
		When:    when,
	})
	if reverseErr != nil {
		return nil, reverseErr
	}
	return reverse, nil
}

func (d *document) applyPaintEdit(ctx context.Context, layer *layerState, layerID uint64, when time.Duration, paint *animation.PaintEdit, pending *pendingChanges) (animation.ReversedEdits, error) {
	switch paint.Kind {
	case animation.PaintSelectBrush:
		return d.selectBrush(ctx, layer, layerID, when, &paint.ID, paint.Definition, paint.Style, pending)

	case animation.PaintBrushProperties:
		return d.setBrushProperties(ctx, layer, layerID, when, &paint.ID, paint.Properties, pending)

	case animation.PaintBrushStroke:
		vector := animation.Vector{
			Kind:        animation.VectorBrushStroke,
			BrushStroke: &animation.BrushStrokeElement{Points: append([]animation.ControlPoint(nil), paint.Points...)},
		}
		return d.placeElement(ctx, layer, layerID, when, &paint.ID, vector, pending)

	case animation.PaintCreateShape:
		vector := animation.Vector{
			Kind:  animation.VectorShape,
			Shape: &animation.ShapeElement{Shape: paint.Shape.Clone(), Width: paint.Width},
		}
		return d.placeElement(ctx, layer, layerID, when, &paint.ID, vector, pending)
	}
	return nil, fmt.Errorf("unknown paint edit kind %q", paint.Kind)
}

func (d *document) applyPathEdit(ctx context.Context, layer *layerState, layerID uint64, when time.Duration, path *animation.PathEdit, pending *pendingChanges) (animation.ReversedEdits, error) {
	switch path.Kind {
	case animation.PathCreatePath:
		vector := animation.Vector{
			Kind: animation.VectorPath,
			Path: &animation.PathElement{Components: append([]animation.PathComponent(nil), path.Components...)},
		}
		return d.placeElement(ctx, layer, layerID, when, &path.ID, vector, pending)

	case animation.PathSelectBrush:
		return d.selectBrush(ctx, layer, layerID, when, &path.ID, path.Definition, path.Style, pending)

	case animation.PathBrushProperties:
		return d.setBrushProperties(ctx, layer, layerID, when, &path.ID, path.Properties, pending)
	}
	return nil, fmt.Errorf("unknown path edit kind %q", path.Kind)
}

// selectBrush creates (or replaces) a brush definition element and makes it
// the layer's active brush. The element is stored but never joins a frame's
// z-order; strokes and shapes reference it through attachments instead.
func (d *document) selectBrush(ctx context.Context, layer *layerState, layerID uint64, when time.Duration, id *animation.ElementID, defn animation.BrushDefinition, style animation.BrushDrawingStyle, pending *pendingChanges) (animation.ReversedEdits, error) {
	vector := animation.Vector{
		Kind:            animation.VectorBrushDefinition,
		BrushDefinition: &animation.BrushDefinitionElement{Definition: defn, Style: style},
	}
	reverse, value, err := d.storeFrameless(ctx, layerID, when, id, vector, pending)
	if err != nil {
		return nil, err
	}
	layer.brushDefinition = value
	layer.hasDefinition = true
	return reverse, nil
}

func (d *document) setBrushProperties(ctx context.Context, layer *layerState, layerID uint64, when time.Duration, id *animation.ElementID, props animation.BrushProperties, pending *pendingChanges) (animation.ReversedEdits, error) {
	vector := animation.Vector{
		Kind:            animation.VectorBrushProperties,
		BrushProperties: &animation.BrushPropertiesElement{Properties: props},
	}
	reverse, value, err := d.storeFrameless(ctx, layerID, when, id, vector, pending)
	if err != nil {
		return nil, err
	}
	layer.brushProperties = value
	layer.hasProperties = true
	return reverse, nil
}

// storeFrameless writes an element that lives outside any frame z-order.
func (d *document) storeFrameless(ctx context.Context, layerID uint64, when time.Duration, id *animation.ElementID, vector animation.Vector, pending *pendingChanges) (animation.ReversedEdits, int64, error) {
	d.resolveID(id)
	value, _ := id.Value()
	existing, ok, err := d.loadElement(ctx, value)
	if err != nil {
		return nil, 0, err
	}

	var reverse animation.ReversedEdits
	if ok {
		recreate, rerr := d.recreationEdits(existing.Clone())
		if rerr != nil {
			return nil, 0, rerr
		}
		reverse = recreate
		existing.Vector = vector
		pending.writeElement(value, animation.SerializeElement(*existing))
	} else {
		reverse = animation.ReversedEdits{deleteElementEdit(*id)}
		wrapper := animation.ElementWrapper{
			ID:        *id,
			Vector:    vector,
			Layer:     layerID,
			CreatedAt: when,
		}
		d.elements[value] = &wrapper
		pending.writeElement(value, animation.SerializeElement(wrapper))
	}
	return reverse, value, nil
}

// placeElement creates or replaces a frame element and attaches it to the
// keyframe covering when. A missing keyframe drops the edit without effect.
func (d *document) placeElement(ctx context.Context, layer *layerState, layerID uint64, when time.Duration, id *animation.ElementID, vector animation.Vector, pending *pendingChanges) (animation.ReversedEdits, error) {
	_, frame, err := d.ensureFrame(ctx, layerID, when)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		d.logger.Warn("paint ignored: no key frame at or before time", "layer", layerID, "when", when)
		return nil, nil
	}

	d.resolveID(id)
	value, _ := id.Value()
	existing, ok, err := d.loadElement(ctx, value)
	if err != nil {
		return nil, err
	}

	var reverse animation.ReversedEdits
	if ok {
		recreate, rerr := d.recreationEdits(existing.Clone())
		if rerr != nil {
			return nil, rerr
		}
		reverse = recreate
		existing.Vector = vector
		pending.writeElement(value, animation.SerializeElement(*existing))
	} else {
		reverse = animation.ReversedEdits{deleteElementEdit(*id)}
		wrapper := animation.ElementWrapper{
			ID:        *id,
			Vector:    vector,
			Layer:     layerID,
			CreatedAt: when,
		}
		if layer.hasDefinition {
			wrapper.Attach(animation.AssignedID(layer.brushDefinition))
		}
		if layer.hasProperties {
			wrapper.Attach(animation.AssignedID(layer.brushProperties))
		}
		d.elements[value] = &wrapper
		pending.writeElement(value, animation.SerializeElement(wrapper))
	}

	if !frame.contains(value) {
		frame.elements = append(frame.elements, value)
		d.frameOf[value] = frameRef{layerID: layerID, start: frame.start}
		pending.structuralCommand(animation.StorageCommand{
			Kind:      animation.CmdAttachElementToLayer,
			LayerID:   layerID,
			ElementID: value,
			When:      frame.start,
		})
	}
	return reverse, nil
}

func deleteElementEdit(id animation.ElementID) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind: animation.EditElement,
		Element: &animation.ElementEditTarget{
			IDs:  []animation.ElementID{id},
			Edit: animation.ElementEdit{Kind: animation.ElementDelete},
		},
	}
}

// recreationEdits builds the edit sequence that recreates an element exactly
// as the given wrapper describes it: content first, then its attachment
// back-references. Motion, transformed, transformation and region elements
// cannot be expressed as creation edits and fail with ErrNotReversible.
func (d *document) recreationEdits(wrapper animation.ElementWrapper) (animation.ReversedEdits, error) {
	var create animation.AnimationEdit
	switch wrapper.Vector.Kind {
	case animation.VectorBrushDefinition:
		create = layerPropertyEdit(wrapper.Layer, animation.LayerEdit{
			Kind: animation.LayerEditPaint,
			When: wrapper.CreatedAt,
			Paint: &animation.PaintEdit{
				Kind:       animation.PaintSelectBrush,
				ID:         wrapper.ID,
				Definition: wrapper.Vector.BrushDefinition.Definition,
				Style:      wrapper.Vector.BrushDefinition.Style,
			},
		})
	case animation.VectorBrushProperties:
		create = layerPropertyEdit(wrapper.Layer, animation.LayerEdit{
			Kind: animation.LayerEditPaint,
			When: wrapper.CreatedAt,
			Paint: &animation.PaintEdit{
				Kind:       animation.PaintBrushProperties,
				ID:         wrapper.ID,
				Properties: wrapper.Vector.BrushProperties.Properties,
			},
		})
	case animation.VectorBrushStroke:
		create = layerPropertyEdit(wrapper.Layer, animation.LayerEdit{
			Kind: animation.LayerEditPaint,
			When: wrapper.CreatedAt,
			Paint: &animation.PaintEdit{
				Kind:   animation.PaintBrushStroke,
				ID:     wrapper.ID,
				Points: append([]animation.ControlPoint(nil), wrapper.Vector.BrushStroke.Points...),
			},
		})
	case animation.VectorShape:
		create = layerPropertyEdit(wrapper.Layer, animation.LayerEdit{
			Kind: animation.LayerEditPaint,
			When: wrapper.CreatedAt,
			Paint: &animation.PaintEdit{
				Kind:  animation.PaintCreateShape,
				ID:    wrapper.ID,
				Width: wrapper.Vector.Shape.Width,
				Shape: wrapper.Vector.Shape.Shape.Clone(),
			},
		})
	case animation.VectorPath:
		create = layerPropertyEdit(wrapper.Layer, animation.LayerEdit{
			Kind: animation.LayerEditPath,
			When: wrapper.CreatedAt,
			Path: &animation.PathEdit{
				Kind:       animation.PathCreatePath,
				ID:         wrapper.ID,
				Components: append([]animation.PathComponent(nil), wrapper.Vector.Path.Components...),
			},
		})
	case animation.VectorGroup:
		return d.groupRecreationEdits(wrapper)
	case animation.VectorError:
		// Nothing to restore.
		return nil, nil
	default:
		return nil, fmt.Errorf("recreate %s element %s: %w", wrapper.Vector.Kind, wrapper.ID, ErrNotReversible)
	}

	reverse := animation.ReversedEdits{create}
	for _, attachment := range wrapper.Attachments {
		reverse = append(reverse, animation.AnimationEdit{
			Kind: animation.EditElement,
			Element: &animation.ElementEditTarget{
				IDs: []animation.ElementID{wrapper.ID},
				Edit: animation.ElementEdit{
					Kind:       animation.ElementAddAttachment,
					Attachment: attachment,
				},
			},
		})
	}
	return reverse, nil
}

// groupRecreationEdits recreates each member element and then reissues the
// grouping edit over them.
func (d *document) groupRecreationEdits(wrapper animation.ElementWrapper) (animation.ReversedEdits, error) {
	group := wrapper.Vector.Group
	var reverse animation.ReversedEdits
	for _, member := range group.Members {
		value, assigned := member.Value()
		if !assigned {
			continue
		}
		memberWrapper, ok := d.elements[value]
		if !ok {
			return nil, fmt.Errorf("recreate group %s: member %s not resident: %w", wrapper.ID, member, ErrNotReversible)
		}
		recreate, err := d.recreationEdits(memberWrapper.Clone())
		if err != nil {
			return nil, err
		}
		reverse = append(reverse, recreate...)
	}
	reverse = append(reverse, animation.AnimationEdit{
		Kind: animation.EditElement,
		Element: &animation.ElementEditTarget{
			IDs: append([]animation.ElementID(nil), group.Members...),
			Edit: animation.ElementEdit{
				Kind:      animation.ElementGroup,
				GroupID:   wrapper.ID,
				GroupType: group.GroupType,
			},
		},
	})
	return reverse, nil
}
