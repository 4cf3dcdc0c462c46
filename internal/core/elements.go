package core

import (
	"context"
	"errors"
	"fmt"

	"animcore/pkg/animation"
)

func (d *document) applyElementEdit(ctx context.Context, target *animation.ElementEditTarget, pending *pendingChanges) (animation.ReversedEdits, error) {
	edit := &target.Edit
	switch edit.Kind {
	case animation.ElementGroup:
		return d.groupElements(ctx, target, pending)
	case animation.ElementCollide:
		return d.collideElements(ctx, target, pending)
	}

	var reverse animation.ReversedEdits
	var reverseErr error
	for _, id := range target.IDs {
		value, assigned := id.Value()
		if !assigned {
			d.logger.Warn("element edit ignored: unassigned target", "edit", edit.Kind)
			continue
		}
		wrapper, ok, err := d.loadElement(ctx, value)
		if err != nil {
			return nil, err
		}
		if !ok {
			d.logger.Warn("element edit ignored: no such element", "element", value, "edit", edit.Kind)
			continue
		}
		r, err := d.applySingleElementEdit(ctx, wrapper, edit, pending)
		if err != nil {
			if errors.Is(err, ErrNotReversible) {
				reverseErr = err
				continue
			}
			return nil, err
		}
		reverse = reverse.PushFront(r...)
	}
	if reverseErr != nil {
		return nil, reverseErr
	}
	return reverse, nil
}

func (d *document) applySingleElementEdit(ctx context.Context, wrapper *animation.ElementWrapper, edit *animation.ElementEdit, pending *pendingChanges) (animation.ReversedEdits, error) {
	value, _ := wrapper.ID.Value()

	switch edit.Kind {
	case animation.ElementAddAttachment:
		attachValue, assigned := edit.Attachment.Value()
		if !assigned {
			d.logger.Warn("add attachment ignored: unassigned attachment", "element", value)
			return nil, nil
		}
		if d.wouldCycle(value, edit.Attachment) {
			d.logger.Warn("add attachment ignored: would create a cycle", "element", value, "attachment", attachValue)
			return nil, nil
		}
		for _, existing := range wrapper.Attachments {
			if existing == edit.Attachment {
				return nil, nil
			}
		}
		wrapper.Attach(edit.Attachment)
		pending.writeElement(value, animation.SerializeElement(*wrapper))
		return animation.ReversedEdits{elementEdit(wrapper.ID, animation.ElementEdit{
			Kind:       animation.ElementRemoveAttachment,
			Attachment: edit.Attachment,
		})}, nil

	case animation.ElementRemoveAttachment:
		if !wrapper.Detach(edit.Attachment) {
			d.logger.Warn("remove attachment ignored: not attached", "element", value)
			return nil, nil
		}
		pending.writeElement(value, animation.SerializeElement(*wrapper))
		return animation.ReversedEdits{elementEdit(wrapper.ID, animation.ElementEdit{
			Kind:       animation.ElementAddAttachment,
			Attachment: edit.Attachment,
		})}, nil

	case animation.ElementSetPath:
		if wrapper.Vector.Kind != animation.VectorPath || wrapper.Vector.Path == nil {
			d.logger.Warn("set path ignored: not a path element", "element", value, "kind", wrapper.Vector.Kind)
			return nil, nil
		}
		reverse := animation.ReversedEdits{elementEdit(wrapper.ID, animation.ElementEdit{
			Kind:       animation.ElementSetPath,
			Components: append([]animation.PathComponent(nil), wrapper.Vector.Path.Components...),
		})}
		wrapper.Vector.Path.Components = append([]animation.PathComponent(nil), edit.Components...)
		pending.writeElement(value, animation.SerializeElement(*wrapper))
		return reverse, nil

	case animation.ElementSetControlPoints:
		if wrapper.Vector.Kind != animation.VectorBrushStroke || wrapper.Vector.BrushStroke == nil {
			d.logger.Warn("set control points ignored: not a brush stroke", "element", value, "kind", wrapper.Vector.Kind)
			return nil, nil
		}
		reverse := animation.ReversedEdits{elementEdit(wrapper.ID, animation.ElementEdit{
			Kind:   animation.ElementSetControlPoints,
			Points: append([]animation.ControlPoint(nil), wrapper.Vector.BrushStroke.Points...),
			When:   edit.When,
		})}
		wrapper.Vector.BrushStroke.Points = append([]animation.ControlPoint(nil), edit.Points...)
		pending.writeElement(value, animation.SerializeElement(*wrapper))
		return reverse, nil

	case animation.ElementOrder:
		return d.orderElement(wrapper, edit.Ordering, pending)

	case animation.ElementUngroup:
		return d.ungroupElement(wrapper, pending)

	case animation.ElementDelete:
		reverse, err := d.recreationEdits(wrapper.Clone())
		if err != nil {
			return nil, err
		}
		if ref, ok := d.frameOf[value]; ok {
			if layer, exists := d.layers[ref.layerID]; exists {
				if frame, exists := layer.frames[ref.start]; exists {
					frame.remove(value)
				}
			}
			delete(d.frameOf, value)
		}
		delete(d.elements, value)
		pending.deleteElement(value)
		return reverse, nil

	case animation.ElementDetachFromFrame:
		ref, ok := d.frameOf[value]
		if !ok {
			d.logger.Warn("detach from frame ignored: element not in a frame", "element", value)
			return nil, nil
		}
		reverse, err := d.recreationEdits(wrapper.Clone())
		if err != nil {
			return nil, err
		}
		if layer, exists := d.layers[ref.layerID]; exists {
			if frame, exists := layer.frames[ref.start]; exists {
				frame.remove(value)
			}
		}
		delete(d.frameOf, value)
		pending.structuralCommand(animation.StorageCommand{
			Kind:      animation.CmdDetachElementFromLayer,
			ElementID: value,
		})
		return reverse, nil

	case animation.ElementConvertToPath:
		components, ok := pathComponentsOf(wrapper.Vector)
		if !ok {
			d.logger.Warn("convert to path ignored: element has no outline", "element", value, "kind", wrapper.Vector.Kind)
			return nil, nil
		}
		reverse, err := d.recreationEdits(wrapper.Clone())
		if err != nil {
			return nil, err
		}
		wrapper.Vector = animation.Vector{
			Kind: animation.VectorPath,
			Path: &animation.PathElement{Components: components},
		}
		pending.writeElement(value, animation.SerializeElement(*wrapper))
		return reverse, nil

	case animation.ElementTransformEdit:
		return d.transformElement(wrapper, edit.Transforms, pending)
	}

	return nil, fmt.Errorf("unknown element edit kind %q", edit.Kind)
}

func elementEdit(id animation.ElementID, edit animation.ElementEdit) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind: animation.EditElement,
		Element: &animation.ElementEditTarget{
			IDs:  []animation.ElementID{id},
			Edit: edit,
		},
	}
}

// wouldCycle walks the resident attachment graph from attachment looking for
// owner. Attachments must stay a DAG; storage never checks this.
func (d *document) wouldCycle(owner int64, attachment animation.ElementID) bool {
	stack := []animation.ElementID{attachment}
	seen := make(map[int64]bool)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		value, assigned := id.Value()
		if !assigned {
			continue
		}
		if value == owner {
			return true
		}
		if seen[value] {
			continue
		}
		seen[value] = true
		if wrapper, ok := d.elements[value]; ok {
			stack = append(stack, wrapper.Attachments...)
		}
	}
	return false
}

// rebuildFrameOrder re-issues detach/attach commands for every element of a
// frame so that the persisted z_index sequence matches the in-memory order.
func (d *document) rebuildFrameOrder(frame *cachedFrame, layerID uint64, pending *pendingChanges) {
	for _, id := range frame.elements {
		pending.structuralCommand(animation.StorageCommand{
			Kind:      animation.CmdDetachElementFromLayer,
			ElementID: id,
		})
	}
	for _, id := range frame.elements {
		pending.structuralCommand(animation.StorageCommand{
			Kind:      animation.CmdAttachElementToLayer,
			LayerID:   layerID,
			ElementID: id,
			When:      frame.start,
		})
	}
}

func (d *document) orderElement(wrapper *animation.ElementWrapper, ordering animation.ElementOrdering, pending *pendingChanges) (animation.ReversedEdits, error) {
	value, _ := wrapper.ID.Value()
	ref, ok := d.frameOf[value]
	if !ok {
		d.logger.Warn("order ignored: element not in a frame", "element", value)
		return nil, nil
	}
	layer, exists := d.layers[ref.layerID]
	if !exists {
		return nil, nil
	}
	frame, exists := layer.frames[ref.start]
	if !exists {
		return nil, nil
	}

	oldIdx := frame.indexOf(value)
	if oldIdx < 0 {
		return nil, nil
	}

	newIdx := oldIdx
	switch ordering.Kind {
	case animation.OrderInFront:
		if oldIdx < len(frame.elements)-1 {
			newIdx = oldIdx + 1
		}
	case animation.OrderBehind:
		if oldIdx > 0 {
			newIdx = oldIdx - 1
		}
	case animation.OrderToTop:
		newIdx = len(frame.elements) - 1
	case animation.OrderToBottom:
		newIdx = 0
	case animation.OrderBefore:
		sibling, assigned := ordering.Sibling.Value()
		if !assigned {
			d.logger.Warn("order ignored: unassigned sibling", "element", value)
			return nil, nil
		}
		siblingIdx := frame.indexOf(sibling)
		if siblingIdx < 0 {
			d.logger.Warn("order ignored: sibling not in frame", "element", value, "sibling", sibling)
			return nil, nil
		}
		// Move immediately in front of the sibling.
		newIdx = siblingIdx
		if oldIdx > siblingIdx {
			newIdx = siblingIdx + 1
		}
	default:
		return nil, fmt.Errorf("unknown ordering kind %q", ordering.Kind)
	}
	if newIdx == oldIdx {
		return nil, nil
	}

	// The reverse move places the element back in front of its previous
	// lower neighbour, or at the bottom when it had none.
	reverseOrdering := animation.ElementOrdering{Kind: animation.OrderToBottom}
	if oldIdx > 0 {
		reverseOrdering = animation.ElementOrdering{
			Kind:    animation.OrderBefore,
			Sibling: animation.AssignedID(frame.elements[oldIdx-1]),
		}
	}

	frame.elements = append(frame.elements[:oldIdx], frame.elements[oldIdx+1:]...)
	frame.elements = append(frame.elements[:newIdx], append([]int64{value}, frame.elements[newIdx:]...)...)
	d.rebuildFrameOrder(frame, ref.layerID, pending)

	return animation.ReversedEdits{elementEdit(wrapper.ID, animation.ElementEdit{
		Kind:     animation.ElementOrder,
		Ordering: reverseOrdering,
	})}, nil
}

// groupElements combines the whole target ID set into one group element. The
// group takes the frame position of the first member; the members leave the
// frame z-order but stay stored.
func (d *document) groupElements(ctx context.Context, target *animation.ElementEditTarget, pending *pendingChanges) (animation.ReversedEdits, error) {
	var members []animation.ElementID
	var wrappers []*animation.ElementWrapper
	for _, id := range target.IDs {
		value, assigned := id.Value()
		if !assigned {
			d.logger.Warn("group ignored member: unassigned target")
			continue
		}
		wrapper, ok, err := d.loadElement(ctx, value)
		if err != nil {
			return nil, err
		}
		if !ok {
			d.logger.Warn("group ignored member: no such element", "element", value)
			continue
		}
		members = append(members, id)
		wrappers = append(wrappers, wrapper)
	}
	if len(members) == 0 {
		d.logger.Warn("group ignored: no resolvable members")
		return nil, nil
	}

	groupID := target.Edit.GroupID
	d.resolveID(&groupID)
	target.Edit.GroupID = groupID
	groupValue, _ := groupID.Value()

	groupType := target.Edit.GroupType
	if groupType == "" {
		groupType = animation.GroupNormal
	}

	// Locate the frame holding the first framed member.
	var ref frameRef
	var frame *cachedFrame
	for _, member := range members {
		value, _ := member.Value()
		if r, ok := d.frameOf[value]; ok {
			if layer, exists := d.layers[r.layerID]; exists {
				if f, exists := layer.frames[r.start]; exists {
					ref, frame = r, f
					break
				}
			}
		}
	}

	group := animation.ElementWrapper{
		ID: groupID,
		Vector: animation.Vector{
			Kind: animation.VectorGroup,
			Group: &animation.GroupElement{
				GroupType: groupType,
				Members:   append([]animation.ElementID(nil), members...),
			},
		},
	}
	if frame != nil {
		group.Layer = ref.layerID
		group.CreatedAt = frame.start
	}

	for _, wrapper := range wrappers {
		parent := groupID
		wrapper.Parent = &parent
		value, _ := wrapper.ID.Value()
		pending.writeElement(value, animation.SerializeElement(*wrapper))
	}

	if frame != nil {
		memberSet := make(map[int64]bool, len(members))
		for _, member := range members {
			value, _ := member.Value()
			memberSet[value] = true
		}
		// The group takes the z position of the bottom-most member.
		insertAt := -1
		kept := make([]int64, 0, len(frame.elements))
		for _, id := range frame.elements {
			if memberSet[id] {
				if insertAt < 0 {
					insertAt = len(kept)
				}
				delete(d.frameOf, id)
				continue
			}
			kept = append(kept, id)
		}
		if insertAt < 0 {
			insertAt = len(kept)
		}
		frame.elements = append(kept[:insertAt:insertAt], append([]int64{groupValue}, kept[insertAt:]...)...)
		d.frameOf[groupValue] = ref
		d.rebuildFrameOrder(frame, ref.layerID, pending)
	}

	d.elements[groupValue] = &group
	pending.writeElement(groupValue, animation.SerializeElement(group))

	return animation.ReversedEdits{elementEdit(groupID, animation.ElementEdit{
		Kind: animation.ElementUngroup,
	})}, nil
}

func (d *document) ungroupElement(wrapper *animation.ElementWrapper, pending *pendingChanges) (animation.ReversedEdits, error) {
	if wrapper.Vector.Kind != animation.VectorGroup || wrapper.Vector.Group == nil {
		value, _ := wrapper.ID.Value()
		d.logger.Warn("ungroup ignored: not a group", "element", value, "kind", wrapper.Vector.Kind)
		return nil, nil
	}
	groupValue, _ := wrapper.ID.Value()
	group := wrapper.Vector.Group

	reverse := animation.ReversedEdits{{
		Kind: animation.EditElement,
		Element: &animation.ElementEditTarget{
			IDs: append([]animation.ElementID(nil), group.Members...),
			Edit: animation.ElementEdit{
				Kind:      animation.ElementGroup,
				GroupID:   wrapper.ID,
				GroupType: group.GroupType,
			},
		},
	}}

	ref, framed := d.frameOf[groupValue]
	var frame *cachedFrame
	if framed {
		if layer, exists := d.layers[ref.layerID]; exists {
			frame = layer.frames[ref.start]
		}
	}

	var memberValues []int64
	for _, member := range group.Members {
		value, assigned := member.Value()
		if !assigned {
			continue
		}
		memberWrapper, ok := d.elements[value]
		if !ok {
			continue
		}
		memberWrapper.Parent = nil
		pending.writeElement(value, animation.SerializeElement(*memberWrapper))
		memberValues = append(memberValues, value)
	}

	if frame != nil {
		idx := frame.indexOf(groupValue)
		if idx >= 0 {
			tail := append([]int64(nil), frame.elements[idx+1:]...)
			frame.elements = append(frame.elements[:idx], memberValues...)
			frame.elements = append(frame.elements, tail...)
		}
		for _, value := range memberValues {
			d.frameOf[value] = ref
		}
		delete(d.frameOf, groupValue)
		d.rebuildFrameOrder(frame, ref.layerID, pending)
	}

	delete(d.elements, groupValue)
	pending.deleteElement(groupValue)
	return reverse, nil
}

// collideElements merges each target element with the frame elements whose
// bounding boxes overlap it: the overlapping outlines are concatenated into
// the target as path components and the merged elements are deleted.
func (d *document) collideElements(ctx context.Context, target *animation.ElementEditTarget, pending *pendingChanges) (animation.ReversedEdits, error) {
	var reverse animation.ReversedEdits
	for _, id := range target.IDs {
		value, assigned := id.Value()
		if !assigned {
			continue
		}
		wrapper, ok, err := d.loadElement(ctx, value)
		if err != nil {
			return nil, err
		}
		if !ok {
			d.logger.Warn("collide ignored: no such element", "element", value)
			continue
		}
		ref, framed := d.frameOf[value]
		if !framed {
			d.logger.Warn("collide ignored: element not in a frame", "element", value)
			continue
		}
		layer, exists := d.layers[ref.layerID]
		if !exists {
			continue
		}
		frame, exists := layer.frames[ref.start]
		if !exists {
			continue
		}
		bounds, ok := boundsOf(wrapper.Vector)
		if !ok {
			d.logger.Warn("collide ignored: element has no bounds", "element", value, "kind", wrapper.Vector.Kind)
			continue
		}

		var merged []int64
		for _, other := range frame.elements {
			if other == value {
				continue
			}
			otherWrapper, exists := d.elements[other]
			if !exists {
				continue
			}
			otherBounds, ok := boundsOf(otherWrapper.Vector)
			if !ok {
				continue
			}
			if bounds.Overlaps(otherBounds) {
				merged = append(merged, other)
			}
		}
		if len(merged) == 0 {
			continue
		}

		recreateTarget, err := d.recreationEdits(wrapper.Clone())
		if err != nil {
			return nil, err
		}
		reverse = reverse.PushFront(recreateTarget...)

		components, _ := pathComponentsOf(wrapper.Vector)
		for _, other := range merged {
			otherWrapper := d.elements[other]
			recreate, err := d.recreationEdits(otherWrapper.Clone())
			if err != nil {
				return nil, err
			}
			reverse = reverse.PushFront(recreate...)

			otherComponents, ok := pathComponentsOf(otherWrapper.Vector)
			if ok {
				components = append(components, otherComponents...)
			}
			frame.remove(other)
			delete(d.frameOf, other)
			delete(d.elements, other)
			pending.deleteElement(other)
		}

		wrapper.Vector = animation.Vector{
			Kind: animation.VectorPath,
			Path: &animation.PathElement{Components: components},
		}
		pending.writeElement(value, animation.SerializeElement(*wrapper))
	}
	return reverse, nil
}

func (d *document) applyMotionEdit(ctx context.Context, target *animation.MotionEditTarget, pending *pendingChanges) (animation.ReversedEdits, error) {
	edit := &target.Edit
	if edit.Kind == animation.MotionCreate {
		d.resolveID(&target.ID)
		value, _ := target.ID.Value()
		wrapper := animation.ElementWrapper{
			ID: target.ID,
			Vector: animation.Vector{
				Kind: animation.VectorMotion,
				Motion: &animation.MotionElement{
					MotionType: edit.MotionType,
					Origin:     edit.Origin,
					Curve:      edit.Curve.Clone(),
				},
			},
		}
		d.elements[value] = &wrapper
		pending.writeElement(value, animation.SerializeElement(wrapper))
		return animation.ReversedEdits{{
			Kind: animation.EditMotion,
			Motion: &animation.MotionEditTarget{
				ID:   target.ID,
				Edit: animation.MotionEdit{Kind: animation.MotionDelete},
			},
		}}, nil
	}

	value, assigned := target.ID.Value()
	if !assigned {
		d.logger.Warn("motion edit ignored: unassigned target", "edit", edit.Kind)
		return nil, nil
	}
	wrapper, ok, err := d.loadElement(ctx, value)
	if err != nil {
		return nil, err
	}
	if !ok || wrapper.Vector.Kind != animation.VectorMotion || wrapper.Vector.Motion == nil {
		d.logger.Warn("motion edit ignored: no such motion element", "element", value, "edit", edit.Kind)
		return nil, nil
	}
	motion := wrapper.Vector.Motion

	switch edit.Kind {
	case animation.MotionDelete:
		delete(d.elements, value)
		pending.deleteElement(value)
		return nil, fmt.Errorf("delete motion element %d: %w", value, ErrNotReversible)

	case animation.MotionSetType:
		reverse := animation.ReversedEdits{motionEdit(target.ID, animation.MotionEdit{
			Kind:       animation.MotionSetType,
			MotionType: motion.MotionType,
		})}
		motion.MotionType = edit.MotionType
		pending.writeElement(value, animation.SerializeElement(*wrapper))
		return reverse, nil

	case animation.MotionSetOrigin:
		reverse := animation.ReversedEdits{motionEdit(target.ID, animation.MotionEdit{
			Kind:   animation.MotionSetOrigin,
			Origin: motion.Origin,
		})}
		motion.Origin = edit.Origin
		pending.writeElement(value, animation.SerializeElement(*wrapper))
		return reverse, nil

	case animation.MotionSetPath:
		reverse := animation.ReversedEdits{motionEdit(target.ID, animation.MotionEdit{
			Kind:  animation.MotionSetPath,
			Curve: motion.Curve.Clone(),
		})}
		motion.Curve = edit.Curve.Clone()
		pending.writeElement(value, animation.SerializeElement(*wrapper))
		return reverse, nil
	}
	return nil, fmt.Errorf("unknown motion edit kind %q", edit.Kind)
}

func motionEdit(id animation.ElementID, edit animation.MotionEdit) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind:   animation.EditMotion,
		Motion: &animation.MotionEditTarget{ID: id, Edit: edit},
	}
}
