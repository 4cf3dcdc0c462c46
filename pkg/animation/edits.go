package animation

import "time"

// AnimationEditKind discriminates the top-level edit variants.
type AnimationEditKind string

// Top-level edit variants. AnimationEdit is the only externally submitted
// change type; everything else the core does is derived from it.
const (
	EditSetSize        AnimationEditKind = "set_size"
	EditSetFrameLength AnimationEditKind = "set_frame_length"
	EditSetLength      AnimationEditKind = "set_length"
	EditAddNewLayer    AnimationEditKind = "add_new_layer"
	EditRemoveLayer    AnimationEditKind = "remove_layer"
	EditLayer          AnimationEditKind = "layer"
	EditElement        AnimationEditKind = "element"
	EditMotion         AnimationEditKind = "motion"
	EditUndo           AnimationEditKind = "undo"
)

// AnimationEdit is the unit of change consumed by the dispatcher. Exactly the
// payload field matching Kind is populated.
type AnimationEdit struct {
	Kind AnimationEditKind `json:"kind"`

	// SetSize
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// SetFrameLength / SetLength
	Duration time.Duration `json:"duration,omitempty"`

	// AddNewLayer / RemoveLayer
	LayerID uint64 `json:"layer_id,omitempty"`

	Layer   *LayerEditTarget   `json:"layer,omitempty"`
	Element *ElementEditTarget `json:"element,omitempty"`
	Motion  *MotionEditTarget  `json:"motion,omitempty"`
	Undo    *UndoEdit          `json:"undo,omitempty"`
}

// LayerEditTarget applies a layer edit to a specific layer.
type LayerEditTarget struct {
	LayerID uint64    `json:"layer_id"`
	Edit    LayerEdit `json:"edit"`
}

// ElementEditTarget applies an element edit to one or more elements.
type ElementEditTarget struct {
	IDs  []ElementID `json:"ids"`
	Edit ElementEdit `json:"edit"`
}

// MotionEditTarget applies a motion edit to a motion element.
type MotionEditTarget struct {
	ID   ElementID  `json:"id"`
	Edit MotionEdit `json:"edit"`
}

// LayerEditKind discriminates layer edit variants.
type LayerEditKind string

// Layer edit variants.
const (
	LayerEditPaint          LayerEditKind = "paint"
	LayerEditPath           LayerEditKind = "path"
	LayerEditAddKeyFrame    LayerEditKind = "add_key_frame"
	LayerEditRemoveKeyFrame LayerEditKind = "remove_key_frame"
	LayerEditSetName        LayerEditKind = "set_name"
	LayerEditSetOrdering    LayerEditKind = "set_ordering"
	LayerEditSetAlpha       LayerEditKind = "set_alpha"
)

// LayerEdit is the union of per-layer edits.
type LayerEdit struct {
	Kind LayerEditKind `json:"kind"`

	// Paint / Path / AddKeyFrame / RemoveKeyFrame
	When time.Duration `json:"when,omitempty"`

	Paint *PaintEdit `json:"paint,omitempty"`
	Path  *PathEdit  `json:"path,omitempty"`

	// SetName
	Name string `json:"name,omitempty"`
	// SetOrdering
	Ordering int64 `json:"ordering,omitempty"`
	// SetAlpha
	Alpha float64 `json:"alpha,omitempty"`
}

// PaintEditKind discriminates paint edit variants.
type PaintEditKind string

// Paint edit variants.
const (
	PaintSelectBrush     PaintEditKind = "select_brush"
	PaintBrushProperties PaintEditKind = "brush_properties"
	PaintBrushStroke     PaintEditKind = "brush_stroke"
	PaintCreateShape     PaintEditKind = "create_shape"
)

// PaintEdit creates or configures painted content at a keyframe instant.
type PaintEdit struct {
	Kind PaintEditKind `json:"kind"`

	// ID of the element the edit creates. Usually unassigned on submission.
	ID ElementID `json:"id"`

	// SelectBrush
	Definition BrushDefinition   `json:"definition,omitempty"`
	Style      BrushDrawingStyle `json:"style,omitempty"`

	// BrushProperties
	Properties BrushProperties `json:"properties,omitempty"`

	// BrushStroke
	Points []ControlPoint `json:"points,omitempty"`

	// CreateShape
	Width float64 `json:"width,omitempty"`
	Shape Shape   `json:"shape,omitempty"`
}

// PathEditKind discriminates path edit variants.
type PathEditKind string

// Path edit variants.
const (
	PathCreatePath      PathEditKind = "create_path"
	PathSelectBrush     PathEditKind = "select_brush"
	PathBrushProperties PathEditKind = "brush_properties"
)

// PathEdit creates explicit path content at a keyframe instant.
type PathEdit struct {
	Kind PathEditKind `json:"kind"`

	ID ElementID `json:"id"`

	// CreatePath
	Components []PathComponent `json:"components,omitempty"`

	// SelectBrush
	Definition BrushDefinition   `json:"definition,omitempty"`
	Style      BrushDrawingStyle `json:"style,omitempty"`

	// BrushProperties
	Properties BrushProperties `json:"properties,omitempty"`
}

// ElementEditKind discriminates element edit variants.
type ElementEditKind string

// Element edit variants.
const (
	ElementAddAttachment    ElementEditKind = "add_attachment"
	ElementRemoveAttachment ElementEditKind = "remove_attachment"
	ElementSetPath          ElementEditKind = "set_path"
	ElementSetControlPoints ElementEditKind = "set_control_points"
	ElementOrder            ElementEditKind = "order"
	ElementGroup            ElementEditKind = "group"
	ElementUngroup          ElementEditKind = "ungroup"
	ElementDelete           ElementEditKind = "delete"
	ElementDetachFromFrame  ElementEditKind = "detach_from_frame"
	ElementConvertToPath    ElementEditKind = "convert_to_path"
	ElementCollide          ElementEditKind = "collide_with_existing"
	ElementTransformEdit    ElementEditKind = "transform"
)

// ElementEdit is the union of edits applied to already-created elements.
type ElementEdit struct {
	Kind ElementEditKind `json:"kind"`

	// AddAttachment / RemoveAttachment
	Attachment ElementID `json:"attachment,omitempty"`

	// SetPath
	Components []PathComponent `json:"components,omitempty"`

	// SetControlPoints
	Points []ControlPoint `json:"points,omitempty"`
	When   time.Duration  `json:"when,omitempty"`

	// Order
	Ordering ElementOrdering `json:"ordering,omitempty"`

	// Group
	GroupID   ElementID `json:"group_id,omitempty"`
	GroupType GroupType `json:"group_type,omitempty"`

	// Transform
	Transforms []ElementTransform `json:"transforms,omitempty"`
}

// OrderingKind discriminates element ordering operations.
type OrderingKind string

// Ordering operations within a keyframe's z-order.
const (
	OrderInFront  OrderingKind = "in_front"
	OrderBehind   OrderingKind = "behind"
	OrderToTop    OrderingKind = "to_top"
	OrderToBottom OrderingKind = "to_bottom"
	OrderBefore   OrderingKind = "before"
)

// ElementOrdering names a z-order move. Before carries the sibling to move
// in front of.
type ElementOrdering struct {
	Kind    OrderingKind `json:"kind,omitempty"`
	Sibling ElementID    `json:"sibling,omitempty"`
}

// ElementTransformKind discriminates element transform variants.
type ElementTransformKind string

// Element transform variants.
const (
	TransformSetAnchor      ElementTransformKind = "set_anchor"
	TransformMoveTo         ElementTransformKind = "move_to"
	TransformAlign          ElementTransformKind = "align"
	TransformFlipHorizontal ElementTransformKind = "flip_horizontal"
	TransformFlipVertical   ElementTransformKind = "flip_vertical"
	TransformScale          ElementTransformKind = "scale"
	TransformRotate         ElementTransformKind = "rotate"
)

// ElementAlign names an alignment edge or axis for the Align transform.
type ElementAlign string

// Alignment targets.
const (
	AlignLeft    ElementAlign = "left"
	AlignCenter  ElementAlign = "center"
	AlignRight   ElementAlign = "right"
	AlignTop     ElementAlign = "top"
	AlignMiddle  ElementAlign = "middle"
	AlignBottom  ElementAlign = "bottom"
)

// ElementTransform is one step of a transform edit. Scale carries x/y factors
// in Point; Rotate carries radians in Angle.
type ElementTransform struct {
	Kind  ElementTransformKind `json:"kind"`
	Point Point                `json:"point,omitempty"`
	Align ElementAlign         `json:"align,omitempty"`
	Angle float64              `json:"angle,omitempty"`
}

// MotionEditKind discriminates motion edit variants.
type MotionEditKind string

// Motion edit variants.
const (
	MotionCreate    MotionEditKind = "create"
	MotionDelete    MotionEditKind = "delete"
	MotionSetType   MotionEditKind = "set_type"
	MotionSetOrigin MotionEditKind = "set_origin"
	MotionSetPath   MotionEditKind = "set_path"
)

// MotionEdit mutates a motion element.
type MotionEdit struct {
	Kind MotionEditKind `json:"kind"`

	MotionType string    `json:"motion_type,omitempty"`
	Origin     Point     `json:"origin,omitempty"`
	Curve      TimeCurve `json:"curve,omitempty"`
}

// UndoEditKind discriminates undo edit variants.
type UndoEditKind string

// Undo edit variants. Only PerformUndo has a real effect; the markers are
// forwarded to the retirement stream unchanged for UI synchronization.
const (
	UndoPrepareToUndo UndoEditKind = "prepare_to_undo"
	UndoBeginAction   UndoEditKind = "begin_action"
	UndoFinishAction  UndoEditKind = "finish_action"
	UndoPerformUndo   UndoEditKind = "perform_undo"
	UndoCompletedUndo UndoEditKind = "completed_undo"
	UndoFailedUndo    UndoEditKind = "failed_undo"
)

// UndoEdit drives the undo subsystem state machine.
type UndoEdit struct {
	Kind UndoEditKind `json:"kind"`

	// PrepareToUndo
	Name string `json:"name,omitempty"`

	// PerformUndo
	Original []AnimationEdit `json:"original,omitempty"`
	Actions  []AnimationEdit `json:"actions,omitempty"`

	// CompletedUndo
	Completed []AnimationEdit `json:"completed,omitempty"`

	// FailedUndo
	Reason UndoFailureReason `json:"reason,omitempty"`
}

// MissingPayload reports whether the edit lacks the pointer payload its kind
// requires. Such an edit can neither be applied nor serialized.
func (e *AnimationEdit) MissingPayload() bool {
	switch e.Kind {
	case EditLayer:
		if e.Layer == nil {
			return true
		}
		switch e.Layer.Edit.Kind {
		case LayerEditPaint:
			return e.Layer.Edit.Paint == nil
		case LayerEditPath:
			return e.Layer.Edit.Path == nil
		}
		return false
	case EditElement:
		return e.Element == nil
	case EditMotion:
		return e.Motion == nil
	case EditUndo:
		return e.Undo == nil
	}
	return false
}

// ReversedEdits is an ordered edit sequence that, applied immediately after
// the edit it was generated for, restores the prior observable state of the
// elements and frame contents reachable from the edited layer and time. Not
// guaranteed minimal.
type ReversedEdits []AnimationEdit

// PushFront prepends edits, keeping reversal order: the inverse of the most
// recently applied edit runs first.
func (r ReversedEdits) PushFront(edits ...AnimationEdit) ReversedEdits {
	if len(edits) == 0 {
		return r
	}
	out := make(ReversedEdits, 0, len(edits)+len(r))
	out = append(out, edits...)
	out = append(out, r...)
	return out
}
