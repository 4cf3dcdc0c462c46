// Package encoding implements the text serialization of animation edits used
// for the on-disk edit log and any text interchange. Each edit serializes to
// a single-character tag followed by fixed-width encoded fields, one edit per
// line; deserialization is the exact inverse.
package encoding

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"animcore/pkg/animation"
)

// MarshalEdit encodes one edit as a single log line (without newline).
func MarshalEdit(edit animation.AnimationEdit) string {
	var w lineWriter
	w.edit(edit)
	return w.String()
}

// MarshalEdits encodes a batch of edits, one per line, newline-terminated.
func MarshalEdits(edits []animation.AnimationEdit) string {
	var sb strings.Builder
	for _, edit := range edits {
		sb.WriteString(MarshalEdit(edit))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// lineWriter builds one serialized edit line. Numeric fields are encoded as
// fixed-width hex: 16 digits for 64-bit integers and IEEE-754 float bit
// patterns, 8 digits for counts and string lengths. Strings are hex-encoded
// so a line never contains a newline.
type lineWriter struct {
	sb strings.Builder
}

func (w *lineWriter) String() string { return w.sb.String() }

func (w *lineWriter) tag(c byte)          { w.sb.WriteByte(c) }
func (w *lineWriter) u64(v uint64)        { fmt.Fprintf(&w.sb, "%016x", v) }
func (w *lineWriter) i64(v int64)         { w.u64(uint64(v)) }
func (w *lineWriter) f64(v float64)       { w.u64(math.Float64bits(v)) }
func (w *lineWriter) count(n int)         { fmt.Fprintf(&w.sb, "%08x", uint32(n)) }
func (w *lineWriter) dur(d time.Duration) { w.i64(d.Nanoseconds()) }

func (w *lineWriter) str(s string) {
	w.count(len(s))
	w.sb.WriteString(hex.EncodeToString([]byte(s)))
}

func (w *lineWriter) id(id animation.ElementID) {
	if value, assigned := id.Value(); assigned {
		w.tag('A')
		w.i64(value)
	} else {
		w.tag('U')
	}
}

func (w *lineWriter) point(p animation.Point) {
	w.f64(p.X)
	w.f64(p.Y)
}

// controlPoint writes the flat (point, past-control, future-control) triple.
func (w *lineWriter) controlPoint(cp animation.ControlPoint) {
	w.point(cp.Point)
	w.point(cp.Past)
	w.point(cp.Future)
}

func (w *lineWriter) controlPoints(points []animation.ControlPoint) {
	w.count(len(points))
	for _, cp := range points {
		w.controlPoint(cp)
	}
}

func (w *lineWriter) edit(edit animation.AnimationEdit) {
	switch edit.Kind {
	case animation.EditSetSize:
		w.tag('S')
		w.f64(edit.Width)
		w.f64(edit.Height)
	case animation.EditSetFrameLength:
		w.tag('F')
		w.dur(edit.Duration)
	case animation.EditSetLength:
		w.tag('D')
		w.dur(edit.Duration)
	case animation.EditAddNewLayer:
		w.tag('+')
		w.u64(edit.LayerID)
	case animation.EditRemoveLayer:
		w.tag('-')
		w.u64(edit.LayerID)
	case animation.EditLayer:
		w.tag('L')
		w.u64(edit.Layer.LayerID)
		w.layerEdit(edit.Layer.Edit)
	case animation.EditElement:
		w.tag('E')
		w.count(len(edit.Element.IDs))
		for _, id := range edit.Element.IDs {
			w.id(id)
		}
		w.elementEdit(edit.Element.Edit)
	case animation.EditMotion:
		w.tag('M')
		w.id(edit.Motion.ID)
		w.motionEdit(edit.Motion.Edit)
	case animation.EditUndo:
		w.tag('U')
		w.undoEdit(*edit.Undo)
	}
}

func (w *lineWriter) layerEdit(edit animation.LayerEdit) {
	switch edit.Kind {
	case animation.LayerEditPaint:
		w.tag('P')
		w.dur(edit.When)
		w.paintEdit(*edit.Paint)
	case animation.LayerEditPath:
		w.tag('p')
		w.dur(edit.When)
		w.pathEdit(*edit.Path)
	case animation.LayerEditAddKeyFrame:
		w.tag('K')
		w.dur(edit.When)
	case animation.LayerEditRemoveKeyFrame:
		w.tag('k')
		w.dur(edit.When)
	case animation.LayerEditSetName:
		w.tag('N')
		w.str(edit.Name)
	case animation.LayerEditSetOrdering:
		w.tag('O')
		w.i64(edit.Ordering)
	case animation.LayerEditSetAlpha:
		w.tag('a')
		w.f64(edit.Alpha)
	}
}

func (w *lineWriter) paintEdit(edit animation.PaintEdit) {
	switch edit.Kind {
	case animation.PaintSelectBrush:
		w.tag('B')
		w.id(edit.ID)
		w.brushDefinition(edit.Definition)
		w.brushStyle(edit.Style)
	case animation.PaintBrushProperties:
		w.tag('P')
		w.id(edit.ID)
		w.brushProperties(edit.Properties)
	case animation.PaintBrushStroke:
		w.tag('S')
		w.id(edit.ID)
		w.controlPoints(edit.Points)
	case animation.PaintCreateShape:
		w.tag('H')
		w.id(edit.ID)
		w.f64(edit.Width)
		w.shape(edit.Shape)
	}
}

func (w *lineWriter) pathEdit(edit animation.PathEdit) {
	switch edit.Kind {
	case animation.PathCreatePath:
		w.tag('C')
		w.id(edit.ID)
		w.pathComponents(edit.Components)
	case animation.PathSelectBrush:
		w.tag('B')
		w.id(edit.ID)
		w.brushDefinition(edit.Definition)
		w.brushStyle(edit.Style)
	case animation.PathBrushProperties:
		w.tag('P')
		w.id(edit.ID)
		w.brushProperties(edit.Properties)
	}
}

func (w *lineWriter) elementEdit(edit animation.ElementEdit) {
	switch edit.Kind {
	case animation.ElementAddAttachment:
		w.tag('a')
		w.id(edit.Attachment)
	case animation.ElementRemoveAttachment:
		w.tag('r')
		w.id(edit.Attachment)
	case animation.ElementSetPath:
		w.tag('p')
		w.pathComponents(edit.Components)
	case animation.ElementSetControlPoints:
		w.tag('c')
		w.dur(edit.When)
		w.controlPoints(edit.Points)
	case animation.ElementOrder:
		w.tag('o')
		w.ordering(edit.Ordering)
	case animation.ElementGroup:
		w.tag('g')
		w.id(edit.GroupID)
		w.groupType(edit.GroupType)
	case animation.ElementUngroup:
		w.tag('u')
	case animation.ElementDelete:
		w.tag('d')
	case animation.ElementDetachFromFrame:
		w.tag('f')
	case animation.ElementConvertToPath:
		w.tag('v')
	case animation.ElementCollide:
		w.tag('x')
	case animation.ElementTransformEdit:
		w.tag('t')
		w.count(len(edit.Transforms))
		for _, transform := range edit.Transforms {
			w.elementTransform(transform)
		}
	}
}

func (w *lineWriter) ordering(ordering animation.ElementOrdering) {
	switch ordering.Kind {
	case animation.OrderInFront:
		w.tag('f')
	case animation.OrderBehind:
		w.tag('b')
	case animation.OrderToTop:
		w.tag('t')
	case animation.OrderToBottom:
		w.tag('z')
	case animation.OrderBefore:
		w.tag('B')
		w.id(ordering.Sibling)
	}
}

func (w *lineWriter) elementTransform(transform animation.ElementTransform) {
	switch transform.Kind {
	case animation.TransformSetAnchor:
		w.tag('a')
		w.point(transform.Point)
	case animation.TransformMoveTo:
		w.tag('m')
		w.point(transform.Point)
	case animation.TransformAlign:
		w.tag('l')
		w.align(transform.Align)
	case animation.TransformFlipHorizontal:
		w.tag('h')
	case animation.TransformFlipVertical:
		w.tag('v')
	case animation.TransformScale:
		w.tag('s')
		w.point(transform.Point)
	case animation.TransformRotate:
		w.tag('r')
		w.f64(transform.Angle)
	}
}

func (w *lineWriter) align(align animation.ElementAlign) {
	switch align {
	case animation.AlignLeft:
		w.tag('l')
	case animation.AlignCenter:
		w.tag('c')
	case animation.AlignRight:
		w.tag('r')
	case animation.AlignTop:
		w.tag('t')
	case animation.AlignMiddle:
		w.tag('m')
	case animation.AlignBottom:
		w.tag('b')
	}
}

func (w *lineWriter) motionEdit(edit animation.MotionEdit) {
	switch edit.Kind {
	case animation.MotionCreate:
		w.tag('C')
	case animation.MotionDelete:
		w.tag('D')
	case animation.MotionSetType:
		w.tag('T')
		w.str(edit.MotionType)
	case animation.MotionSetOrigin:
		w.tag('O')
		w.point(edit.Origin)
	case animation.MotionSetPath:
		w.tag('P')
		w.timeCurve(edit.Curve)
	}
}

func (w *lineWriter) undoEdit(edit animation.UndoEdit) {
	switch edit.Kind {
	case animation.UndoPrepareToUndo:
		w.tag('p')
		w.str(edit.Name)
	case animation.UndoBeginAction:
		w.tag('b')
	case animation.UndoFinishAction:
		w.tag('f')
	case animation.UndoPerformUndo:
		w.tag('P')
		w.editList(edit.Original)
		w.editList(edit.Actions)
	case animation.UndoCompletedUndo:
		w.tag('c')
		w.editList(edit.Completed)
	case animation.UndoFailedUndo:
		w.tag('F')
		w.str(string(edit.Reason))
	}
}

// editList nests a sequence of edits inside a line by encoding each edit's
// own serialization as a length-prefixed string.
func (w *lineWriter) editList(edits []animation.AnimationEdit) {
	w.count(len(edits))
	for _, edit := range edits {
		w.str(MarshalEdit(edit))
	}
}

func (w *lineWriter) groupType(groupType animation.GroupType) {
	if groupType == animation.GroupAdded {
		w.tag('a')
	} else {
		w.tag('n')
	}
}

func (w *lineWriter) brushDefinition(defn animation.BrushDefinition) {
	switch defn.Kind {
	case animation.BrushSimple:
		w.tag('s')
	case animation.BrushInk:
		w.tag('i')
		w.f64(defn.MinWidth)
		w.f64(defn.MaxWidth)
		w.f64(defn.ScaleUpDelta)
	}
}

func (w *lineWriter) brushStyle(style animation.BrushDrawingStyle) {
	if style == animation.BrushErase {
		w.tag('e')
	} else {
		w.tag('d')
	}
}

func (w *lineWriter) brushProperties(props animation.BrushProperties) {
	w.f64(props.Size)
	w.f64(props.Opacity)
	w.f64(props.Color.R)
	w.f64(props.Color.G)
	w.f64(props.Color.B)
	w.f64(props.Color.A)
}

func (w *lineWriter) shape(shape animation.Shape) {
	switch shape.Kind {
	case animation.ShapeCircle:
		w.tag('c')
		w.point(shape.Center)
		w.f64(shape.Radius)
	case animation.ShapeRectangle:
		w.tag('r')
		w.point(shape.TopLeft)
		w.point(shape.BottomRight)
	case animation.ShapePolygon:
		w.tag('p')
		w.count(len(shape.Points))
		for _, p := range shape.Points {
			w.point(p)
		}
	}
}

func (w *lineWriter) pathComponents(components []animation.PathComponent) {
	w.count(len(components))
	for _, component := range components {
		switch component.Op {
		case animation.PathMove:
			w.tag('M')
			w.point(component.Target)
		case animation.PathLine:
			w.tag('L')
			w.point(component.Target)
		case animation.PathBezier:
			w.tag('B')
			w.point(component.Target)
			w.point(component.Control1)
			w.point(component.Control2)
		case animation.PathClose:
			w.tag('Z')
		}
	}
}

func (w *lineWriter) timeCurve(curve animation.TimeCurve) {
	w.count(len(curve.Points))
	for _, tp := range curve.Points {
		w.f64(tp.Millis)
		w.point(tp.Position)
	}
}
