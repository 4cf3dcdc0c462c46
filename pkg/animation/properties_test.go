package animation

import (
	"testing"
	"time"
)

func TestDefaultAnimationProperties(t *testing.T) {
	props := DefaultAnimationProperties()
	if props.Width != 1920 || props.Height != 1080 {
		t.Fatalf("default canvas = %vx%v, want 1920x1080", props.Width, props.Height)
	}
	if props.FrameLength != time.Second/30 {
		t.Fatalf("default frame length = %v, want %v", props.FrameLength, time.Second/30)
	}
	if props.Duration != 2*time.Minute {
		t.Fatalf("default duration = %v, want 2m", props.Duration)
	}
}

func TestAnimationPropertiesRoundTrip(t *testing.T) {
	props := AnimationProperties{Width: 1080, Height: 720, FrameLength: time.Second / 24, Duration: time.Minute}
	parsed, err := ParseAnimationProperties(props.Serialize())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != props {
		t.Fatalf("round trip = %+v, want %+v", parsed, props)
	}
}

func TestParseAnimationPropertiesRejectsGarbage(t *testing.T) {
	if _, err := ParseAnimationProperties("{nope"); err == nil {
		t.Fatalf("expected error for malformed blob")
	}
}

func TestLayerPropertiesRoundTrip(t *testing.T) {
	props := LayerProperties{Name: "ink", Alpha: 0.5, Ordering: 3}
	parsed, err := ParseLayerProperties(props.Serialize())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != props {
		t.Fatalf("round trip = %+v, want %+v", parsed, props)
	}
}

func TestParseElementTurnsCorruptBlobIntoErrorElement(t *testing.T) {
	wrapper := ParseElement(42, "not json at all")
	if wrapper.Vector.Kind != VectorError {
		t.Fatalf("corrupt element decoded as %s, want %s", wrapper.Vector.Kind, VectorError)
	}
	id, ok := wrapper.ID.Value()
	if !ok || id != 42 {
		t.Fatalf("corrupt element lost its ID: %s", wrapper.ID)
	}
}

func TestElementRoundTripKeepsAttachments(t *testing.T) {
	wrapper := ElementWrapper{
		ID: AssignedID(7),
		Vector: Vector{
			Kind:  VectorShape,
			Shape: &ShapeElement{Width: 2, Shape: Shape{Kind: ShapeCircle, Center: Point{X: 1, Y: 2}, Radius: 3}},
		},
	}
	wrapper.Attach(AssignedID(9))

	parsed := ParseElement(7, SerializeElement(wrapper))
	if parsed.Vector.Kind != VectorShape || parsed.Vector.Shape == nil {
		t.Fatalf("round trip lost shape payload: %+v", parsed.Vector)
	}
	if parsed.Vector.Shape.Shape.Radius != 3 {
		t.Fatalf("round trip radius = %v, want 3", parsed.Vector.Shape.Shape.Radius)
	}
	if len(parsed.Attachments) != 1 {
		t.Fatalf("round trip lost attachments: %+v", parsed.Attachments)
	}
}
