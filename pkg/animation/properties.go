package animation

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnimationProperties is the document-level property blob persisted through
// WriteAnimationProperties.
type AnimationProperties struct {
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	FrameLength time.Duration `json:"frame_length"`
	Duration    time.Duration `json:"duration"`
}

// DefaultAnimationProperties returns the properties of a fresh document:
// a 1920x1080 canvas at 30fps lasting two minutes.
func DefaultAnimationProperties() AnimationProperties {
	return AnimationProperties{
		Width:       1920.0,
		Height:      1080.0,
		FrameLength: time.Second / 30,
		Duration:    2 * time.Minute,
	}
}

// Serialize encodes the properties blob.
func (p AnimationProperties) Serialize() string {
	data, err := json.Marshal(p)
	if err != nil {
		// All fields are plain numbers; marshalling cannot fail.
		panic(fmt.Errorf("serialize animation properties: %w", err))
	}
	return string(data)
}

// ParseAnimationProperties decodes a properties blob.
func ParseAnimationProperties(serialized string) (AnimationProperties, error) {
	var props AnimationProperties
	if err := json.Unmarshal([]byte(serialized), &props); err != nil {
		return AnimationProperties{}, fmt.Errorf("parse animation properties: %w", err)
	}
	return props, nil
}

// Serialize encodes the layer properties blob.
func (p LayerProperties) Serialize() string {
	data, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Errorf("serialize layer properties: %w", err))
	}
	return string(data)
}

// ParseLayerProperties decodes a layer properties blob.
func ParseLayerProperties(serialized string) (LayerProperties, error) {
	var props LayerProperties
	if err := json.Unmarshal([]byte(serialized), &props); err != nil {
		return LayerProperties{}, fmt.Errorf("parse layer properties: %w", err)
	}
	return props, nil
}

// SerializeElement encodes an element wrapper for WriteElement.
func SerializeElement(w ElementWrapper) string {
	data, err := json.Marshal(w)
	if err != nil {
		panic(fmt.Errorf("serialize element %s: %w", w.ID, err))
	}
	return string(data)
}

// ParseElement decodes a stored element wrapper. A blob that fails to decode
// yields an Error element for the given ID rather than an error: documents
// with individually corrupt elements still load, and the broken element
// renders as nothing.
func ParseElement(id int64, serialized string) ElementWrapper {
	var wrapper ElementWrapper
	if err := json.Unmarshal([]byte(serialized), &wrapper); err != nil {
		return ElementWrapper{ID: AssignedID(id), Vector: ErrorVector()}
	}
	wrapper.ID = AssignedID(id)
	return wrapper
}
