package encoding

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"animcore/pkg/animation"
)

// ErrMalformedEdit is wrapped by all deserialization failures.
var ErrMalformedEdit = errors.New("malformed edit")

// UnmarshalEdit decodes one serialized edit line. Unknown tags and truncated
// fields yield an error wrapping ErrMalformedEdit; decoding never panics.
func UnmarshalEdit(line string) (animation.AnimationEdit, error) {
	r := &lineReader{input: line}
	edit, err := r.edit()
	if err != nil {
		return animation.AnimationEdit{}, err
	}
	if r.pos != len(r.input) {
		return animation.AnimationEdit{}, r.failf("trailing data after edit")
	}
	return edit, nil
}

type lineReader struct {
	input string
	pos   int
}

func (r *lineReader) failf(format string, args ...any) error {
	return fmt.Errorf("%w: %s (offset %d)", ErrMalformedEdit, fmt.Sprintf(format, args...), r.pos)
}

func (r *lineReader) tag() (byte, error) {
	if r.pos >= len(r.input) {
		return 0, r.failf("unexpected end of line")
	}
	c := r.input[r.pos]
	r.pos++
	return c, nil
}

func (r *lineReader) fixed(n int) (string, error) {
	if r.pos+n > len(r.input) {
		return "", r.failf("truncated field")
	}
	s := r.input[r.pos : r.pos+n]
	r.pos += n
	return s, nil
}

func (r *lineReader) u64() (uint64, error) {
	s, err := r.fixed(16)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, r.failf("bad integer %q", s)
	}
	return v, nil
}

func (r *lineReader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *lineReader) f64() (float64, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *lineReader) count() (int, error) {
	s, err := r.fixed(8)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, r.failf("bad count %q", s)
	}
	return int(v), nil
}

// countOf reads a repeated-field count and rejects any value the rest of the
// line cannot possibly hold, where elemWidth is the minimum serialized width
// of one element. Keeps a malformed count from driving a huge preallocation.
func (r *lineReader) countOf(elemWidth int) (int, error) {
	n, err := r.count()
	if err != nil {
		return 0, err
	}
	if n > (len(r.input)-r.pos)/elemWidth {
		return 0, r.failf("count %d exceeds remaining input", n)
	}
	return n, nil
}

func (r *lineReader) dur() (time.Duration, error) {
	v, err := r.i64()
	return time.Duration(v), err
}

func (r *lineReader) str() (string, error) {
	n, err := r.count()
	if err != nil {
		return "", err
	}
	encoded, err := r.fixed(n * 2)
	if err != nil {
		return "", err
	}
	decoded, err := hex.DecodeString(encoded)
	if err != nil {
		return "", r.failf("bad string payload")
	}
	return string(decoded), nil
}

func (r *lineReader) id() (animation.ElementID, error) {
	c, err := r.tag()
	if err != nil {
		return animation.ElementID{}, err
	}
	switch c {
	case 'U':
		return animation.UnassignedID(), nil
	case 'A':
		v, err := r.i64()
		if err != nil {
			return animation.ElementID{}, err
		}
		return animation.AssignedID(v), nil
	default:
		return animation.ElementID{}, r.failf("unknown element id tag %q", c)
	}
}

func (r *lineReader) point() (animation.Point, error) {
	x, err := r.f64()
	if err != nil {
		return animation.Point{}, err
	}
	y, err := r.f64()
	if err != nil {
		return animation.Point{}, err
	}
	return animation.Point{X: x, Y: y}, nil
}

func (r *lineReader) controlPoints() ([]animation.ControlPoint, error) {
	n, err := r.countOf(96)
	if err != nil {
		return nil, err
	}
	points := make([]animation.ControlPoint, 0, n)
	for i := 0; i < n; i++ {
		var cp animation.ControlPoint
		if cp.Point, err = r.point(); err != nil {
			return nil, err
		}
		if cp.Past, err = r.point(); err != nil {
			return nil, err
		}
		if cp.Future, err = r.point(); err != nil {
			return nil, err
		}
		points = append(points, cp)
	}
	return points, nil
}

func (r *lineReader) edit() (animation.AnimationEdit, error) {
	c, err := r.tag()
	if err != nil {
		return animation.AnimationEdit{}, err
	}
	switch c {
	case 'S':
		edit := animation.AnimationEdit{Kind: animation.EditSetSize}
		if edit.Width, err = r.f64(); err != nil {
			return edit, err
		}
		if edit.Height, err = r.f64(); err != nil {
			return edit, err
		}
		return edit, nil
	case 'F':
		edit := animation.AnimationEdit{Kind: animation.EditSetFrameLength}
		edit.Duration, err = r.dur()
		return edit, err
	case 'D':
		edit := animation.AnimationEdit{Kind: animation.EditSetLength}
		edit.Duration, err = r.dur()
		return edit, err
	case '+':
		edit := animation.AnimationEdit{Kind: animation.EditAddNewLayer}
		edit.LayerID, err = r.u64()
		return edit, err
	case '-':
		edit := animation.AnimationEdit{Kind: animation.EditRemoveLayer}
		edit.LayerID, err = r.u64()
		return edit, err
	case 'L':
		layerID, err := r.u64()
		if err != nil {
			return animation.AnimationEdit{}, err
		}
		layerEdit, err := r.layerEdit()
		if err != nil {
			return animation.AnimationEdit{}, err
		}
		return animation.AnimationEdit{
			Kind:  animation.EditLayer,
			Layer: &animation.LayerEditTarget{LayerID: layerID, Edit: layerEdit},
		}, nil
	case 'E':
		n, err := r.countOf(1)
		if err != nil {
			return animation.AnimationEdit{}, err
		}
		ids := make([]animation.ElementID, 0, n)
		for i := 0; i < n; i++ {
			id, err := r.id()
			if err != nil {
				return animation.AnimationEdit{}, err
			}
			ids = append(ids, id)
		}
		elementEdit, err := r.elementEdit()
		if err != nil {
			return animation.AnimationEdit{}, err
		}
		return animation.AnimationEdit{
			Kind:    animation.EditElement,
			Element: &animation.ElementEditTarget{IDs: ids, Edit: elementEdit},
		}, nil
	case 'M':
		id, err := r.id()
		if err != nil {
			return animation.AnimationEdit{}, err
		}
		motionEdit, err := r.motionEdit()
		if err != nil {
			return animation.AnimationEdit{}, err
		}
		return animation.AnimationEdit{
			Kind:   animation.EditMotion,
			Motion: &animation.MotionEditTarget{ID: id, Edit: motionEdit},
		}, nil
	case 'U':
		undoEdit, err := r.undoEdit()
		if err != nil {
			return animation.AnimationEdit{}, err
		}
		return animation.AnimationEdit{Kind: animation.EditUndo, Undo: &undoEdit}, nil
	default:
		return animation.AnimationEdit{}, r.failf("unknown edit tag %q", c)
	}
}

func (r *lineReader) layerEdit() (animation.LayerEdit, error) {
	c, err := r.tag()
	if err != nil {
		return animation.LayerEdit{}, err
	}
	switch c {
	case 'P':
		edit := animation.LayerEdit{Kind: animation.LayerEditPaint}
		if edit.When, err = r.dur(); err != nil {
			return edit, err
		}
		paint, err := r.paintEdit()
		if err != nil {
			return edit, err
		}
		edit.Paint = &paint
		return edit, nil
	case 'p':
		edit := animation.LayerEdit{Kind: animation.LayerEditPath}
		if edit.When, err = r.dur(); err != nil {
			return edit, err
		}
		path, err := r.pathEdit()
		if err != nil {
			return edit, err
		}
		edit.Path = &path
		return edit, nil
	case 'K':
		edit := animation.LayerEdit{Kind: animation.LayerEditAddKeyFrame}
		edit.When, err = r.dur()
		return edit, err
	case 'k':
		edit := animation.LayerEdit{Kind: animation.LayerEditRemoveKeyFrame}
		edit.When, err = r.dur()
		return edit, err
	case 'N':
		edit := animation.LayerEdit{Kind: animation.LayerEditSetName}
		edit.Name, err = r.str()
		return edit, err
	case 'O':
		edit := animation.LayerEdit{Kind: animation.LayerEditSetOrdering}
		edit.Ordering, err = r.i64()
		return edit, err
	case 'a':
		edit := animation.LayerEdit{Kind: animation.LayerEditSetAlpha}
		edit.Alpha, err = r.f64()
		return edit, err
	default:
		return animation.LayerEdit{}, r.failf("unknown layer edit tag %q", c)
	}
}

func (r *lineReader) paintEdit() (animation.PaintEdit, error) {
	c, err := r.tag()
	if err != nil {
		return animation.PaintEdit{}, err
	}
	switch c {
	case 'B':
		edit := animation.PaintEdit{Kind: animation.PaintSelectBrush}
		if edit.ID, err = r.id(); err != nil {
			return edit, err
		}
		if edit.Definition, err = r.brushDefinition(); err != nil {
			return edit, err
		}
		edit.Style, err = r.brushStyle()
		return edit, err
	case 'P':
		edit := animation.PaintEdit{Kind: animation.PaintBrushProperties}
		if edit.ID, err = r.id(); err != nil {
			return edit, err
		}
		edit.Properties, err = r.brushProperties()
		return edit, err
	case 'S':
		edit := animation.PaintEdit{Kind: animation.PaintBrushStroke}
		if edit.ID, err = r.id(); err != nil {
			return edit, err
		}
		edit.Points, err = r.controlPoints()
		return edit, err
	case 'H':
		edit := animation.PaintEdit{Kind: animation.PaintCreateShape}
		if edit.ID, err = r.id(); err != nil {
			return edit, err
		}
		if edit.Width, err = r.f64(); err != nil {
			return edit, err
		}
		edit.Shape, err = r.shape()
		return edit, err
	default:
		return animation.PaintEdit{}, r.failf("unknown paint edit tag %q", c)
	}
}

func (r *lineReader) pathEdit() (animation.PathEdit, error) {
	c, err := r.tag()
	if err != nil {
		return animation.PathEdit{}, err
	}
	switch c {
	case 'C':
		edit := animation.PathEdit{Kind: animation.PathCreatePath}
		if edit.ID, err = r.id(); err != nil {
			return edit, err
		}
		edit.Components, err = r.pathComponents()
		return edit, err
	case 'B':
		edit := animation.PathEdit{Kind: animation.PathSelectBrush}
		if edit.ID, err = r.id(); err != nil {
			return edit, err
		}
		if edit.Definition, err = r.brushDefinition(); err != nil {
			return edit, err
		}
		edit.Style, err = r.brushStyle()
		return edit, err
	case 'P':
		edit := animation.PathEdit{Kind: animation.PathBrushProperties}
		if edit.ID, err = r.id(); err != nil {
			return edit, err
		}
		edit.Properties, err = r.brushProperties()
		return edit, err
	default:
		return animation.PathEdit{}, r.failf("unknown path edit tag %q", c)
	}
}

func (r *lineReader) elementEdit() (animation.ElementEdit, error) {
	c, err := r.tag()
	if err != nil {
		return animation.ElementEdit{}, err
	}
	switch c {
	case 'a':
		edit := animation.ElementEdit{Kind: animation.ElementAddAttachment}
		edit.Attachment, err = r.id()
		return edit, err
	case 'r':
		edit := animation.ElementEdit{Kind: animation.ElementRemoveAttachment}
		edit.Attachment, err = r.id()
		return edit, err
	case 'p':
		edit := animation.ElementEdit{Kind: animation.ElementSetPath}
		edit.Components, err = r.pathComponents()
		return edit, err
	case 'c':
		edit := animation.ElementEdit{Kind: animation.ElementSetControlPoints}
		if edit.When, err = r.dur(); err != nil {
			return edit, err
		}
		edit.Points, err = r.controlPoints()
		return edit, err
	case 'o':
		edit := animation.ElementEdit{Kind: animation.ElementOrder}
		edit.Ordering, err = r.ordering()
		return edit, err
	case 'g':
		edit := animation.ElementEdit{Kind: animation.ElementGroup}
		if edit.GroupID, err = r.id(); err != nil {
			return edit, err
		}
		edit.GroupType, err = r.groupType()
		return edit, err
	case 'u':
		return animation.ElementEdit{Kind: animation.ElementUngroup}, nil
	case 'd':
		return animation.ElementEdit{Kind: animation.ElementDelete}, nil
	case 'f':
		return animation.ElementEdit{Kind: animation.ElementDetachFromFrame}, nil
	case 'v':
		return animation.ElementEdit{Kind: animation.ElementConvertToPath}, nil
	case 'x':
		return animation.ElementEdit{Kind: animation.ElementCollide}, nil
	case 't':
		edit := animation.ElementEdit{Kind: animation.ElementTransformEdit}
		n, err := r.countOf(1)
		if err != nil {
			return edit, err
		}
		edit.Transforms = make([]animation.ElementTransform, 0, n)
		for i := 0; i < n; i++ {
			transform, err := r.elementTransform()
			if err != nil {
				return edit, err
			}
			edit.Transforms = append(edit.Transforms, transform)
		}
		return edit, nil
	default:
		return animation.ElementEdit{}, r.failf("unknown element edit tag %q", c)
	}
}

func (r *lineReader) ordering() (animation.ElementOrdering, error) {
	c, err := r.tag()
	if err != nil {
		return animation.ElementOrdering{}, err
	}
	switch c {
	case 'f':
		return animation.ElementOrdering{Kind: animation.OrderInFront}, nil
	case 'b':
		return animation.ElementOrdering{Kind: animation.OrderBehind}, nil
	case 't':
		return animation.ElementOrdering{Kind: animation.OrderToTop}, nil
	case 'z':
		return animation.ElementOrdering{Kind: animation.OrderToBottom}, nil
	case 'B':
		sibling, err := r.id()
		if err != nil {
			return animation.ElementOrdering{}, err
		}
		return animation.ElementOrdering{Kind: animation.OrderBefore, Sibling: sibling}, nil
	default:
		return animation.ElementOrdering{}, r.failf("unknown ordering tag %q", c)
	}
}

func (r *lineReader) elementTransform() (animation.ElementTransform, error) {
	c, err := r.tag()
	if err != nil {
		return animation.ElementTransform{}, err
	}
	switch c {
	case 'a':
		transform := animation.ElementTransform{Kind: animation.TransformSetAnchor}
		transform.Point, err = r.point()
		return transform, err
	case 'm':
		transform := animation.ElementTransform{Kind: animation.TransformMoveTo}
		transform.Point, err = r.point()
		return transform, err
	case 'l':
		transform := animation.ElementTransform{Kind: animation.TransformAlign}
		transform.Align, err = r.alignTarget()
		return transform, err
	case 'h':
		return animation.ElementTransform{Kind: animation.TransformFlipHorizontal}, nil
	case 'v':
		return animation.ElementTransform{Kind: animation.TransformFlipVertical}, nil
	case 's':
		transform := animation.ElementTransform{Kind: animation.TransformScale}
		transform.Point, err = r.point()
		return transform, err
	case 'r':
		transform := animation.ElementTransform{Kind: animation.TransformRotate}
		transform.Angle, err = r.f64()
		return transform, err
	default:
		return animation.ElementTransform{}, r.failf("unknown transform tag %q", c)
	}
}

func (r *lineReader) alignTarget() (animation.ElementAlign, error) {
	c, err := r.tag()
	if err != nil {
		return "", err
	}
	switch c {
	case 'l':
		return animation.AlignLeft, nil
	case 'c':
		return animation.AlignCenter, nil
	case 'r':
		return animation.AlignRight, nil
	case 't':
		return animation.AlignTop, nil
	case 'm':
		return animation.AlignMiddle, nil
	case 'b':
		return animation.AlignBottom, nil
	default:
		return "", r.failf("unknown align tag %q", c)
	}
}

func (r *lineReader) motionEdit() (animation.MotionEdit, error) {
	c, err := r.tag()
	if err != nil {
		return animation.MotionEdit{}, err
	}
	switch c {
	case 'C':
		return animation.MotionEdit{Kind: animation.MotionCreate}, nil
	case 'D':
		return animation.MotionEdit{Kind: animation.MotionDelete}, nil
	case 'T':
		edit := animation.MotionEdit{Kind: animation.MotionSetType}
		edit.MotionType, err = r.str()
		return edit, err
	case 'O':
		edit := animation.MotionEdit{Kind: animation.MotionSetOrigin}
		edit.Origin, err = r.point()
		return edit, err
	case 'P':
		edit := animation.MotionEdit{Kind: animation.MotionSetPath}
		edit.Curve, err = r.timeCurve()
		return edit, err
	default:
		return animation.MotionEdit{}, r.failf("unknown motion edit tag %q", c)
	}
}

func (r *lineReader) undoEdit() (animation.UndoEdit, error) {
	c, err := r.tag()
	if err != nil {
		return animation.UndoEdit{}, err
	}
	switch c {
	case 'p':
		edit := animation.UndoEdit{Kind: animation.UndoPrepareToUndo}
		edit.Name, err = r.str()
		return edit, err
	case 'b':
		return animation.UndoEdit{Kind: animation.UndoBeginAction}, nil
	case 'f':
		return animation.UndoEdit{Kind: animation.UndoFinishAction}, nil
	case 'P':
		edit := animation.UndoEdit{Kind: animation.UndoPerformUndo}
		if edit.Original, err = r.editList(); err != nil {
			return edit, err
		}
		edit.Actions, err = r.editList()
		return edit, err
	case 'c':
		edit := animation.UndoEdit{Kind: animation.UndoCompletedUndo}
		edit.Completed, err = r.editList()
		return edit, err
	case 'F':
		reason, err := r.str()
		if err != nil {
			return animation.UndoEdit{}, err
		}
		return animation.UndoEdit{Kind: animation.UndoFailedUndo, Reason: animation.UndoFailureReason(reason)}, nil
	default:
		return animation.UndoEdit{}, r.failf("unknown undo edit tag %q", c)
	}
}

func (r *lineReader) editList() ([]animation.AnimationEdit, error) {
	n, err := r.countOf(10)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	edits := make([]animation.AnimationEdit, 0, n)
	for i := 0; i < n; i++ {
		line, err := r.str()
		if err != nil {
			return nil, err
		}
		edit, err := UnmarshalEdit(line)
		if err != nil {
			return nil, err
		}
		edits = append(edits, edit)
	}
	return edits, nil
}

func (r *lineReader) brushDefinition() (animation.BrushDefinition, error) {
	c, err := r.tag()
	if err != nil {
		return animation.BrushDefinition{}, err
	}
	switch c {
	case 's':
		return animation.BrushDefinition{Kind: animation.BrushSimple}, nil
	case 'i':
		defn := animation.BrushDefinition{Kind: animation.BrushInk}
		if defn.MinWidth, err = r.f64(); err != nil {
			return defn, err
		}
		if defn.MaxWidth, err = r.f64(); err != nil {
			return defn, err
		}
		defn.ScaleUpDelta, err = r.f64()
		return defn, err
	default:
		return animation.BrushDefinition{}, r.failf("unknown brush tag %q", c)
	}
}

func (r *lineReader) brushStyle() (animation.BrushDrawingStyle, error) {
	c, err := r.tag()
	if err != nil {
		return "", err
	}
	switch c {
	case 'd':
		return animation.BrushDraw, nil
	case 'e':
		return animation.BrushErase, nil
	default:
		return "", r.failf("unknown brush style tag %q", c)
	}
}

func (r *lineReader) brushProperties() (animation.BrushProperties, error) {
	var props animation.BrushProperties
	var err error
	if props.Size, err = r.f64(); err != nil {
		return props, err
	}
	if props.Opacity, err = r.f64(); err != nil {
		return props, err
	}
	if props.Color.R, err = r.f64(); err != nil {
		return props, err
	}
	if props.Color.G, err = r.f64(); err != nil {
		return props, err
	}
	if props.Color.B, err = r.f64(); err != nil {
		return props, err
	}
	props.Color.A, err = r.f64()
	return props, err
}

func (r *lineReader) shape() (animation.Shape, error) {
	c, err := r.tag()
	if err != nil {
		return animation.Shape{}, err
	}
	switch c {
	case 'c':
		shape := animation.Shape{Kind: animation.ShapeCircle}
		if shape.Center, err = r.point(); err != nil {
			return shape, err
		}
		shape.Radius, err = r.f64()
		return shape, err
	case 'r':
		shape := animation.Shape{Kind: animation.ShapeRectangle}
		if shape.TopLeft, err = r.point(); err != nil {
			return shape, err
		}
		shape.BottomRight, err = r.point()
		return shape, err
	case 'p':
		shape := animation.Shape{Kind: animation.ShapePolygon}
		n, err := r.countOf(32)
		if err != nil {
			return shape, err
		}
		shape.Points = make([]animation.Point, 0, n)
		for i := 0; i < n; i++ {
			p, err := r.point()
			if err != nil {
				return shape, err
			}
			shape.Points = append(shape.Points, p)
		}
		return shape, nil
	default:
		return animation.Shape{}, r.failf("unknown shape tag %q", c)
	}
}

func (r *lineReader) pathComponents() ([]animation.PathComponent, error) {
	n, err := r.countOf(1)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	components := make([]animation.PathComponent, 0, n)
	for i := 0; i < n; i++ {
		c, err := r.tag()
		if err != nil {
			return nil, err
		}
		var component animation.PathComponent
		switch c {
		case 'M':
			component.Op = animation.PathMove
			if component.Target, err = r.point(); err != nil {
				return nil, err
			}
		case 'L':
			component.Op = animation.PathLine
			if component.Target, err = r.point(); err != nil {
				return nil, err
			}
		case 'B':
			component.Op = animation.PathBezier
			if component.Target, err = r.point(); err != nil {
				return nil, err
			}
			if component.Control1, err = r.point(); err != nil {
				return nil, err
			}
			if component.Control2, err = r.point(); err != nil {
				return nil, err
			}
		case 'Z':
			component.Op = animation.PathClose
		default:
			return nil, r.failf("unknown path component tag %q", c)
		}
		components = append(components, component)
	}
	return components, nil
}

func (r *lineReader) timeCurve() (animation.TimeCurve, error) {
	n, err := r.countOf(48)
	if err != nil {
		return animation.TimeCurve{}, err
	}
	if n == 0 {
		return animation.TimeCurve{}, nil
	}
	curve := animation.TimeCurve{Points: make([]animation.TimePoint, 0, n)}
	for i := 0; i < n; i++ {
		var tp animation.TimePoint
		if tp.Millis, err = r.f64(); err != nil {
			return animation.TimeCurve{}, err
		}
		if tp.Position, err = r.point(); err != nil {
			return animation.TimeCurve{}, err
		}
		curve.Points = append(curve.Points, tp)
	}
	return curve, nil
}

func (r *lineReader) groupType() (animation.GroupType, error) {
	c, err := r.tag()
	if err != nil {
		return "", err
	}
	switch c {
	case 'n':
		return animation.GroupNormal, nil
	case 'a':
		return animation.GroupAdded, nil
	default:
		return "", r.failf("unknown group type tag %q", c)
	}
}
