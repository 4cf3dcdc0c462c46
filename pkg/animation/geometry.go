package animation

// Point is a 2D canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ControlPoint is one sample of a curve: the point itself plus the control
// points towards the previous and next sample. Serialized flat as a
// (point, past, future) triple.
type ControlPoint struct {
	Point  Point `json:"point"`
	Past   Point `json:"past"`
	Future Point `json:"future"`
}

// PathOp discriminates path component variants.
type PathOp string

// Path component operations.
const (
	PathMove   PathOp = "move"
	PathLine   PathOp = "line"
	PathBezier PathOp = "bezier"
	PathClose  PathOp = "close"
)

// PathComponent is one step of a vector path. Bezier components carry two
// control points in addition to the target; move/line carry only the target;
// close carries nothing.
type PathComponent struct {
	Op       PathOp `json:"op"`
	Target   Point  `json:"target,omitempty"`
	Control1 Point  `json:"control1,omitempty"`
	Control2 Point  `json:"control2,omitempty"`
}

// ShapeKind discriminates analytic shape variants.
type ShapeKind string

// Shape variants.
const (
	ShapeCircle    ShapeKind = "circle"
	ShapeRectangle ShapeKind = "rectangle"
	ShapePolygon   ShapeKind = "polygon"
)

// Shape is the closed union of analytic shapes.
type Shape struct {
	Kind ShapeKind `json:"kind"`

	// Circle
	Center Point   `json:"center,omitempty"`
	Radius float64 `json:"radius,omitempty"`

	// Rectangle
	TopLeft     Point `json:"top_left,omitempty"`
	BottomRight Point `json:"bottom_right,omitempty"`

	// Polygon
	Points []Point `json:"points,omitempty"`
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	cp := s
	if len(s.Points) != 0 {
		cp.Points = append([]Point(nil), s.Points...)
	}
	return cp
}

// TimeCurve maps time offsets onto positions for motion elements.
type TimeCurve struct {
	Points []TimePoint `json:"points"`
}

// TimePoint is a single sample of a time curve.
type TimePoint struct {
	Millis   float64 `json:"millis"`
	Position Point   `json:"position"`
}

// Clone returns a deep copy of the curve.
func (c TimeCurve) Clone() TimeCurve {
	cp := c
	if len(c.Points) != 0 {
		cp.Points = append([]TimePoint(nil), c.Points...)
	}
	return cp
}

// Transformation is a 2D affine transform in row-major order:
//
//	[ A B C ]   [x]
//	[ D E F ] * [y]
//	            [1]
type Transformation struct {
	Matrix [6]float64 `json:"matrix"`
}

// IdentityTransform returns the identity transformation.
func IdentityTransform() Transformation {
	return Transformation{Matrix: [6]float64{1, 0, 0, 0, 1, 0}}
}

// Translate returns a transformation moving points by (dx, dy).
func Translate(dx, dy float64) Transformation {
	return Transformation{Matrix: [6]float64{1, 0, dx, 0, 1, dy}}
}

// Apply transforms a point.
func (t Transformation) Apply(p Point) Point {
	m := t.Matrix
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// Then composes transformations so that t applies first, then next.
func (t Transformation) Then(next Transformation) Transformation {
	a, b := next.Matrix, t.Matrix
	return Transformation{Matrix: [6]float64{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}}
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() Point {
	return Point{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

// Overlaps reports whether two bounds intersect.
func (b Bounds) Overlaps(other Bounds) bool {
	if b.Max.X < other.Min.X || other.Max.X < b.Min.X {
		return false
	}
	if b.Max.Y < other.Min.Y || other.Max.Y < b.Min.Y {
		return false
	}
	return true
}

// ExpandTo grows the bounds to include p.
func (b Bounds) ExpandTo(p Point) Bounds {
	if p.X < b.Min.X {
		b.Min.X = p.X
	}
	if p.Y < b.Min.Y {
		b.Min.Y = p.Y
	}
	if p.X > b.Max.X {
		b.Max.X = p.X
	}
	if p.Y > b.Max.Y {
		b.Max.Y = p.Y
	}
	return b
}
