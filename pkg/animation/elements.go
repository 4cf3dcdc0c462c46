// Package animation defines the core document model for the editing core:
// elements, layers, keyframes, the edit unions consumed by the dispatcher,
// and the storage command protocol used to persist them.
package animation

import (
	"fmt"
	"time"
)

// ElementID identifies a document element. A zero-value ElementID is
// unassigned; the dispatcher resolves unassigned IDs to fresh, monotonically
// increasing values the first time an edit referencing them is applied. Once
// assigned an ID never changes.
type ElementID struct {
	Assigned bool  `json:"assigned"`
	ID       int64 `json:"id"`
}

// UnassignedID returns an ID pending assignment.
func UnassignedID() ElementID {
	return ElementID{}
}

// AssignedID returns an ID carrying the given value.
func AssignedID(id int64) ElementID {
	return ElementID{Assigned: true, ID: id}
}

// Value returns the numeric ID and whether it has been assigned.
func (e ElementID) Value() (int64, bool) {
	return e.ID, e.Assigned
}

func (e ElementID) String() string {
	if !e.Assigned {
		return "unassigned"
	}
	return fmt.Sprintf("#%d", e.ID)
}

// VectorKind discriminates the closed set of element variants.
type VectorKind string

// Element variants. The set is fixed: rendering and editing both switch
// exhaustively over these values.
const (
	VectorBrushDefinition VectorKind = "brush_definition"
	VectorBrushProperties VectorKind = "brush_properties"
	VectorBrushStroke     VectorKind = "brush_stroke"
	VectorPath            VectorKind = "path"
	VectorShape           VectorKind = "shape"
	VectorMotion          VectorKind = "motion"
	VectorTransformation  VectorKind = "transformation"
	VectorGroup           VectorKind = "group"
	VectorAnimationRegion VectorKind = "animation_region"
	VectorTransformed     VectorKind = "transformed"
	// VectorError is the terminal placeholder for an element that failed to
	// deserialize. It carries no payload and renders as nothing.
	VectorError VectorKind = "error"
)

// GroupType describes how a group combines its members.
type GroupType string

// Group combination modes.
const (
	GroupNormal GroupType = "normal"
	GroupAdded  GroupType = "added"
)

// Vector is the tagged union of element payloads. Exactly the field matching
// Kind is populated; VectorError has no payload.
type Vector struct {
	Kind VectorKind `json:"kind"`

	BrushDefinition *BrushDefinitionElement `json:"brush_definition,omitempty"`
	BrushProperties *BrushPropertiesElement `json:"brush_properties,omitempty"`
	BrushStroke     *BrushStrokeElement     `json:"brush_stroke,omitempty"`
	Path            *PathElement            `json:"path,omitempty"`
	Shape           *ShapeElement           `json:"shape,omitempty"`
	Motion          *MotionElement          `json:"motion,omitempty"`
	Transformation  *TransformationElement  `json:"transformation,omitempty"`
	Group           *GroupElement           `json:"group,omitempty"`
	Region          *AnimationRegionElement `json:"region,omitempty"`
	Transformed     *TransformedElement     `json:"transformed,omitempty"`
}

// BrushDefinitionElement records a brush selection.
type BrushDefinitionElement struct {
	Definition BrushDefinition   `json:"definition"`
	Style      BrushDrawingStyle `json:"style"`
}

// BrushPropertiesElement records brush properties in effect for later strokes.
type BrushPropertiesElement struct {
	Properties BrushProperties `json:"properties"`
}

// BrushStrokeElement is a free-hand stroke through a sequence of points.
type BrushStrokeElement struct {
	Points []ControlPoint `json:"points"`
}

// PathElement is an explicit vector path.
type PathElement struct {
	Components []PathComponent `json:"components"`
}

// ShapeElement is a closed analytic shape drawn with a stroke width.
type ShapeElement struct {
	Shape Shape   `json:"shape"`
	Width float64 `json:"width"`
}

// MotionElement describes element movement over time. Deprecated in favour of
// animation regions; kept for documents that still contain them.
type MotionElement struct {
	MotionType string    `json:"motion_type"`
	Origin     Point     `json:"origin"`
	Curve      TimeCurve `json:"curve"`
}

// TransformationElement is a standalone transformation attached to elements.
type TransformationElement struct {
	Transform Transformation `json:"transform"`
}

// GroupElement combines member elements into one logical unit. Members keep
// their own IDs; the group records z-order across them.
type GroupElement struct {
	GroupType GroupType   `json:"group_type"`
	Members   []ElementID `json:"members"`
}

// AnimationRegionElement marks a region of the canvas as animated.
type AnimationRegionElement struct {
	Region []PathComponent `json:"region"`
}

// TransformedElement is a base element rendered through a transformation.
type TransformedElement struct {
	Base      ElementID      `json:"base"`
	Transform Transformation `json:"transform"`
}

// ErrorVector returns the placeholder for an element that failed to load.
func ErrorVector() Vector {
	return Vector{Kind: VectorError}
}

// ElementWrapper owns one Vector along with its document bookkeeping: the
// layer and time the element was created on, attached element IDs
// (back-references, not ownership) and an optional parent.
type ElementWrapper struct {
	ID          ElementID     `json:"id"`
	Vector      Vector        `json:"vector"`
	Layer       uint64        `json:"layer,omitempty"`
	CreatedAt   time.Duration `json:"created_at"`
	Attachments []ElementID   `json:"attachments,omitempty"`
	Parent      *ElementID    `json:"parent,omitempty"`
}

// Clone returns a deep copy of the wrapper.
func (w ElementWrapper) Clone() ElementWrapper {
	cp := w
	cp.Vector = w.Vector.Clone()
	if len(w.Attachments) != 0 {
		cp.Attachments = append([]ElementID(nil), w.Attachments...)
	}
	if w.Parent != nil {
		parent := *w.Parent
		cp.Parent = &parent
	}
	return cp
}

// Attach records a back-reference to another element, ignoring duplicates.
func (w *ElementWrapper) Attach(id ElementID) {
	for _, existing := range w.Attachments {
		if existing == id {
			return
		}
	}
	w.Attachments = append(w.Attachments, id)
}

// Detach removes a back-reference. Returns whether anything was removed.
func (w *ElementWrapper) Detach(id ElementID) bool {
	for i, existing := range w.Attachments {
		if existing == id {
			w.Attachments = append(w.Attachments[:i], w.Attachments[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the vector payload.
func (v Vector) Clone() Vector {
	cp := v
	switch v.Kind {
	case VectorBrushDefinition:
		if v.BrushDefinition != nil {
			defn := *v.BrushDefinition
			cp.BrushDefinition = &defn
		}
	case VectorBrushProperties:
		if v.BrushProperties != nil {
			props := *v.BrushProperties
			cp.BrushProperties = &props
		}
	case VectorBrushStroke:
		if v.BrushStroke != nil {
			stroke := BrushStrokeElement{Points: append([]ControlPoint(nil), v.BrushStroke.Points...)}
			cp.BrushStroke = &stroke
		}
	case VectorPath:
		if v.Path != nil {
			path := PathElement{Components: clonePathComponents(v.Path.Components)}
			cp.Path = &path
		}
	case VectorShape:
		if v.Shape != nil {
			shape := *v.Shape
			shape.Shape = v.Shape.Shape.Clone()
			cp.Shape = &shape
		}
	case VectorMotion:
		if v.Motion != nil {
			motion := *v.Motion
			motion.Curve = v.Motion.Curve.Clone()
			cp.Motion = &motion
		}
	case VectorTransformation:
		if v.Transformation != nil {
			transform := *v.Transformation
			cp.Transformation = &transform
		}
	case VectorGroup:
		if v.Group != nil {
			group := GroupElement{GroupType: v.Group.GroupType, Members: append([]ElementID(nil), v.Group.Members...)}
			cp.Group = &group
		}
	case VectorAnimationRegion:
		if v.Region != nil {
			region := AnimationRegionElement{Region: clonePathComponents(v.Region.Region)}
			cp.Region = &region
		}
	case VectorTransformed:
		if v.Transformed != nil {
			transformed := *v.Transformed
			cp.Transformed = &transformed
		}
	case VectorError:
		// no payload
	}
	return cp
}

func clonePathComponents(components []PathComponent) []PathComponent {
	if components == nil {
		return nil
	}
	return append([]PathComponent(nil), components...)
}
