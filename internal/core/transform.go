package core

import (
	"fmt"
	"math"

	"animcore/pkg/animation"
)

// kappa is the standard factor for approximating a quarter circle with one
// cubic bezier.
const kappa = 0.5522847498307936

// boundsOf computes the axis-aligned bounding box of an element's geometry.
// Frameless and non-geometric kinds report no bounds.
func boundsOf(v animation.Vector) (animation.Bounds, bool) {
	var points []animation.Point
	switch v.Kind {
	case animation.VectorBrushStroke:
		if v.BrushStroke == nil {
			return animation.Bounds{}, false
		}
		for _, cp := range v.BrushStroke.Points {
			points = append(points, cp.Point)
		}
	case animation.VectorPath:
		if v.Path == nil {
			return animation.Bounds{}, false
		}
		for _, component := range v.Path.Components {
			switch component.Op {
			case animation.PathMove, animation.PathLine:
				points = append(points, component.Target)
			case animation.PathBezier:
				points = append(points, component.Target, component.Control1, component.Control2)
			}
		}
	case animation.VectorShape:
		if v.Shape == nil {
			return animation.Bounds{}, false
		}
		shape := v.Shape.Shape
		switch shape.Kind {
		case animation.ShapeCircle:
			points = append(points,
				animation.Point{X: shape.Center.X - shape.Radius, Y: shape.Center.Y - shape.Radius},
				animation.Point{X: shape.Center.X + shape.Radius, Y: shape.Center.Y + shape.Radius},
			)
		case animation.ShapeRectangle:
			points = append(points, shape.TopLeft, shape.BottomRight)
		case animation.ShapePolygon:
			points = append(points, shape.Points...)
		}
	default:
		return animation.Bounds{}, false
	}
	if len(points) == 0 {
		return animation.Bounds{}, false
	}
	bounds := animation.Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		bounds = bounds.ExpandTo(p)
	}
	return bounds, true
}

// pathComponentsOf flattens an element's geometry into path components.
// Strokes become bezier chains through their control points; shapes become
// their analytic outlines; paths pass through unchanged.
func pathComponentsOf(v animation.Vector) ([]animation.PathComponent, bool) {
	switch v.Kind {
	case animation.VectorPath:
		if v.Path == nil {
			return nil, false
		}
		return append([]animation.PathComponent(nil), v.Path.Components...), true

	case animation.VectorBrushStroke:
		if v.BrushStroke == nil || len(v.BrushStroke.Points) == 0 {
			return nil, false
		}
		points := v.BrushStroke.Points
		components := []animation.PathComponent{{Op: animation.PathMove, Target: points[0].Point}}
		for i := 1; i < len(points); i++ {
			components = append(components, animation.PathComponent{
				Op:       animation.PathBezier,
				Control1: points[i-1].Future,
				Control2: points[i].Past,
				Target:   points[i].Point,
			})
		}
		return components, true

	case animation.VectorShape:
		if v.Shape == nil {
			return nil, false
		}
		return shapeOutline(v.Shape.Shape)
	}
	return nil, false
}

func shapeOutline(shape animation.Shape) ([]animation.PathComponent, bool) {
	switch shape.Kind {
	case animation.ShapeCircle:
		c, r := shape.Center, shape.Radius
		k := kappa * r
		east := animation.Point{X: c.X + r, Y: c.Y}
		south := animation.Point{X: c.X, Y: c.Y + r}
		west := animation.Point{X: c.X - r, Y: c.Y}
		north := animation.Point{X: c.X, Y: c.Y - r}
		return []animation.PathComponent{
			{Op: animation.PathMove, Target: east},
			{Op: animation.PathBezier, Control1: animation.Point{X: c.X + r, Y: c.Y + k}, Control2: animation.Point{X: c.X + k, Y: c.Y + r}, Target: south},
			{Op: animation.PathBezier, Control1: animation.Point{X: c.X - k, Y: c.Y + r}, Control2: animation.Point{X: c.X - r, Y: c.Y + k}, Target: west},
			{Op: animation.PathBezier, Control1: animation.Point{X: c.X - r, Y: c.Y - k}, Control2: animation.Point{X: c.X - k, Y: c.Y - r}, Target: north},
			{Op: animation.PathBezier, Control1: animation.Point{X: c.X + k, Y: c.Y - r}, Control2: animation.Point{X: c.X + r, Y: c.Y - k}, Target: east},
			{Op: animation.PathClose},
		}, true

	case animation.ShapeRectangle:
		tl, br := shape.TopLeft, shape.BottomRight
		return []animation.PathComponent{
			{Op: animation.PathMove, Target: tl},
			{Op: animation.PathLine, Target: animation.Point{X: br.X, Y: tl.Y}},
			{Op: animation.PathLine, Target: br},
			{Op: animation.PathLine, Target: animation.Point{X: tl.X, Y: br.Y}},
			{Op: animation.PathClose},
		}, true

	case animation.ShapePolygon:
		if len(shape.Points) == 0 {
			return nil, false
		}
		components := []animation.PathComponent{{Op: animation.PathMove, Target: shape.Points[0]}}
		for _, p := range shape.Points[1:] {
			components = append(components, animation.PathComponent{Op: animation.PathLine, Target: p})
		}
		components = append(components, animation.PathComponent{Op: animation.PathClose})
		return components, true
	}
	return nil, false
}

// transformElement applies a transform step sequence to an element's
// geometry. Steps compose left to right; the anchor defaults to the bounds
// center and moves with the element.
func (d *document) transformElement(wrapper *animation.ElementWrapper, transforms []animation.ElementTransform, pending *pendingChanges) (animation.ReversedEdits, error) {
	value, _ := wrapper.ID.Value()
	bounds, ok := boundsOf(wrapper.Vector)
	if !ok {
		d.logger.Warn("transform ignored: element has no geometry", "element", value, "kind", wrapper.Vector.Kind)
		return nil, nil
	}

	reverse, err := d.recreationEdits(wrapper.Clone())
	if err != nil {
		return nil, err
	}

	anchor := bounds.Center()
	matrix := animation.IdentityTransform()
	for _, step := range transforms {
		var next animation.Transformation
		switch step.Kind {
		case animation.TransformSetAnchor:
			anchor = step.Point
			continue
		case animation.TransformMoveTo:
			next = animation.Translate(step.Point.X-anchor.X, step.Point.Y-anchor.Y)
			anchor = step.Point
		case animation.TransformAlign:
			current := transformBounds(bounds, matrix)
			next = alignTranslation(current, step.Align, d.props)
			anchor = next.Apply(anchor)
		case animation.TransformFlipHorizontal:
			next = aboutAnchor(anchor, animation.Transformation{Matrix: [6]float64{-1, 0, 0, 0, 1, 0}})
		case animation.TransformFlipVertical:
			next = aboutAnchor(anchor, animation.Transformation{Matrix: [6]float64{1, 0, 0, 0, -1, 0}})
		case animation.TransformScale:
			next = aboutAnchor(anchor, animation.Transformation{Matrix: [6]float64{step.Point.X, 0, 0, 0, step.Point.Y, 0}})
		case animation.TransformRotate:
			sin, cos := math.Sin(step.Angle), math.Cos(step.Angle)
			next = aboutAnchor(anchor, animation.Transformation{Matrix: [6]float64{cos, -sin, 0, sin, cos, 0}})
		default:
			return nil, fmt.Errorf("unknown transform kind %q", step.Kind)
		}
		matrix = matrix.Then(next)
	}

	transformVector(&wrapper.Vector, matrix)
	pending.writeElement(value, animation.SerializeElement(*wrapper))
	return reverse, nil
}

// aboutAnchor conjugates a transform so it acts about the anchor point.
func aboutAnchor(anchor animation.Point, t animation.Transformation) animation.Transformation {
	return animation.Translate(-anchor.X, -anchor.Y).Then(t).Then(animation.Translate(anchor.X, anchor.Y))
}

func transformBounds(b animation.Bounds, t animation.Transformation) animation.Bounds {
	corners := []animation.Point{
		t.Apply(b.Min),
		t.Apply(animation.Point{X: b.Max.X, Y: b.Min.Y}),
		t.Apply(b.Max),
		t.Apply(animation.Point{X: b.Min.X, Y: b.Max.Y}),
	}
	out := animation.Bounds{Min: corners[0], Max: corners[0]}
	for _, p := range corners[1:] {
		out = out.ExpandTo(p)
	}
	return out
}

// alignTranslation aligns the element's bounds against the canvas edges or
// center lines.
func alignTranslation(b animation.Bounds, align animation.ElementAlign, props animation.AnimationProperties) animation.Transformation {
	center := b.Center()
	switch align {
	case animation.AlignLeft:
		return animation.Translate(-b.Min.X, 0)
	case animation.AlignCenter:
		return animation.Translate(props.Width/2-center.X, 0)
	case animation.AlignRight:
		return animation.Translate(props.Width-b.Max.X, 0)
	case animation.AlignTop:
		return animation.Translate(0, -b.Min.Y)
	case animation.AlignMiddle:
		return animation.Translate(0, props.Height/2-center.Y)
	case animation.AlignBottom:
		return animation.Translate(0, props.Height-b.Max.Y)
	}
	return animation.IdentityTransform()
}

// transformVector maps every geometry point of the element through t.
// Circles keep their analytic form: the center is mapped and the radius is
// scaled by the average axis scale.
func transformVector(v *animation.Vector, t animation.Transformation) {
	switch v.Kind {
	case animation.VectorBrushStroke:
		if v.BrushStroke == nil {
			return
		}
		for i := range v.BrushStroke.Points {
			cp := &v.BrushStroke.Points[i]
			cp.Point = t.Apply(cp.Point)
			cp.Past = t.Apply(cp.Past)
			cp.Future = t.Apply(cp.Future)
		}
	case animation.VectorPath:
		if v.Path == nil {
			return
		}
		for i := range v.Path.Components {
			component := &v.Path.Components[i]
			switch component.Op {
			case animation.PathMove, animation.PathLine:
				component.Target = t.Apply(component.Target)
			case animation.PathBezier:
				component.Target = t.Apply(component.Target)
				component.Control1 = t.Apply(component.Control1)
				component.Control2 = t.Apply(component.Control2)
			}
		}
	case animation.VectorShape:
		if v.Shape == nil {
			return
		}
		shape := &v.Shape.Shape
		switch shape.Kind {
		case animation.ShapeCircle:
			shape.Center = t.Apply(shape.Center)
			m := t.Matrix
			sx := math.Hypot(m[0], m[3])
			sy := math.Hypot(m[1], m[4])
			shape.Radius *= (sx + sy) / 2
		case animation.ShapeRectangle:
			a := t.Apply(shape.TopLeft)
			b := t.Apply(shape.BottomRight)
			shape.TopLeft = animation.Point{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)}
			shape.BottomRight = animation.Point{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)}
		case animation.ShapePolygon:
			for i := range shape.Points {
				shape.Points[i] = t.Apply(shape.Points[i])
			}
		}
	}
}
