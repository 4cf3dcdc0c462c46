package animation

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestIdentityTransformLeavesPointsAlone(t *testing.T) {
	p := Point{X: 3.5, Y: -2}
	if got := IdentityTransform().Apply(p); got != p {
		t.Fatalf("identity moved point: %+v", got)
	}
}

func TestTranslateThenTranslateComposes(t *testing.T) {
	composed := Translate(1, 2).Then(Translate(10, 20))
	got := composed.Apply(Point{X: 0, Y: 0})
	if !almostEqual(got.X, 11) || !almostEqual(got.Y, 22) {
		t.Fatalf("composed translate = %+v, want (11, 22)", got)
	}
}

func TestThenAppliesReceiverFirst(t *testing.T) {
	// Scale by 2 about the origin, then move right.
	scale := Transformation{Matrix: [6]float64{2, 0, 0, 0, 2, 0}}
	composed := scale.Then(Translate(5, 0))
	got := composed.Apply(Point{X: 1, Y: 1})
	if !almostEqual(got.X, 7) || !almostEqual(got.Y, 2) {
		t.Fatalf("scale-then-translate = %+v, want (7, 2)", got)
	}
	// The other order moves first, so the translation is scaled too.
	reversed := Translate(5, 0).Then(scale)
	got = reversed.Apply(Point{X: 1, Y: 1})
	if !almostEqual(got.X, 12) || !almostEqual(got.Y, 2) {
		t.Fatalf("translate-then-scale = %+v, want (12, 2)", got)
	}
}

func TestBoundsOverlaps(t *testing.T) {
	a := Bounds{Min: Point{X: 0, Y: 0}, Max: Point{X: 10, Y: 10}}
	cases := []struct {
		name string
		b    Bounds
		want bool
	}{
		{"contained", Bounds{Min: Point{X: 2, Y: 2}, Max: Point{X: 4, Y: 4}}, true},
		{"partial", Bounds{Min: Point{X: 8, Y: 8}, Max: Point{X: 14, Y: 14}}, true},
		{"disjoint", Bounds{Min: Point{X: 11, Y: 0}, Max: Point{X: 20, Y: 10}}, false},
		{"touching edge", Bounds{Min: Point{X: 10, Y: 0}, Max: Point{X: 20, Y: 10}}, true},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Fatalf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBoundsExpandTo(t *testing.T) {
	b := Bounds{Min: Point{X: 1, Y: 1}, Max: Point{X: 2, Y: 2}}
	b = b.ExpandTo(Point{X: -1, Y: 5})
	if b.Min.X != -1 || b.Min.Y != 1 || b.Max.X != 2 || b.Max.Y != 5 {
		t.Fatalf("ExpandTo = %+v", b)
	}
	if c := b.Center(); !almostEqual(c.X, 0.5) || !almostEqual(c.Y, 3) {
		t.Fatalf("Center = %+v", c)
	}
}

func TestShapeCloneIsDeep(t *testing.T) {
	shape := Shape{Kind: ShapePolygon, Points: []Point{{X: 1}, {X: 2}}}
	clone := shape.Clone()
	clone.Points[0].X = 99
	if shape.Points[0].X != 1 {
		t.Fatalf("clone shares point storage with original")
	}
}
