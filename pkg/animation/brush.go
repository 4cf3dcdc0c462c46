package animation

// BrushKind discriminates brush definition variants.
type BrushKind string

// Brush definition variants.
const (
	BrushSimple BrushKind = "simple"
	BrushInk    BrushKind = "ink"
)

// BrushDefinition selects the brush algorithm used for subsequent strokes.
type BrushDefinition struct {
	Kind BrushKind `json:"kind"`

	// Ink brush parameters; unused for the simple brush.
	MinWidth     float64 `json:"min_width,omitempty"`
	MaxWidth     float64 `json:"max_width,omitempty"`
	ScaleUpDelta float64 `json:"scale_up_delta,omitempty"`
}

// BrushDrawingStyle selects whether a brush paints or erases.
type BrushDrawingStyle string

// Drawing styles.
const (
	BrushDraw  BrushDrawingStyle = "draw"
	BrushErase BrushDrawingStyle = "erase"
)

// Color is an RGBA color with components in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// BrushProperties are the tunable stroke parameters in effect when a stroke
// or shape is created.
type BrushProperties struct {
	Size    float64 `json:"size"`
	Opacity float64 `json:"opacity"`
	Color   Color   `json:"color"`
}
