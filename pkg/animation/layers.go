package animation

import (
	"sort"
	"time"
)

// LayerProperties are the persisted attributes of a layer, stored as the
// properties blob of the AddLayer storage command.
type LayerProperties struct {
	Name     string  `json:"name"`
	Alpha    float64 `json:"alpha"`
	Ordering int64   `json:"ordering"`
}

// DefaultLayerProperties returns the properties a freshly added layer starts
// with.
func DefaultLayerProperties() LayerProperties {
	return LayerProperties{Alpha: 1.0}
}

// KeyFrame holds the elements visible on a layer from its start time until
// the next keyframe. Element order is z-order: insertion order is
// front-to-back paint order unless explicitly reordered, and new elements are
// appended on top.
type KeyFrame struct {
	StartTime time.Duration
	Elements  []ElementID
}

// Layer is an ordered set of keyframes plus presentation properties.
// Keyframe start times are unique and kept in ascending order.
type Layer struct {
	ID         uint64
	Properties LayerProperties
	KeyFrames  []time.Duration
}

// AddKeyFrameTime inserts a keyframe start time, keeping times sorted.
// Returns false if the time already exists.
func (l *Layer) AddKeyFrameTime(when time.Duration) bool {
	idx := sort.Search(len(l.KeyFrames), func(i int) bool { return l.KeyFrames[i] >= when })
	if idx < len(l.KeyFrames) && l.KeyFrames[idx] == when {
		return false
	}
	l.KeyFrames = append(l.KeyFrames, 0)
	copy(l.KeyFrames[idx+1:], l.KeyFrames[idx:])
	l.KeyFrames[idx] = when
	return true
}

// RemoveKeyFrameTime removes a keyframe start time. Returns false if absent.
func (l *Layer) RemoveKeyFrameTime(when time.Duration) bool {
	idx := sort.Search(len(l.KeyFrames), func(i int) bool { return l.KeyFrames[i] >= when })
	if idx >= len(l.KeyFrames) || l.KeyFrames[idx] != when {
		return false
	}
	l.KeyFrames = append(l.KeyFrames[:idx], l.KeyFrames[idx+1:]...)
	return true
}

// NearestKeyFrameTime returns the greatest keyframe start time <= when.
// There is no implicit keyframe at time zero: a query before the first
// keyframe reports no match.
func (l *Layer) NearestKeyFrameTime(when time.Duration) (time.Duration, bool) {
	idx := sort.Search(len(l.KeyFrames), func(i int) bool { return l.KeyFrames[i] > when })
	if idx == 0 {
		return 0, false
	}
	return l.KeyFrames[idx-1], true
}

// KeyFramesDuring returns the keyframe start times within [from, until).
func (l *Layer) KeyFramesDuring(from, until time.Duration) []time.Duration {
	start := sort.Search(len(l.KeyFrames), func(i int) bool { return l.KeyFrames[i] >= from })
	end := sort.Search(len(l.KeyFrames), func(i int) bool { return l.KeyFrames[i] >= until })
	return append([]time.Duration(nil), l.KeyFrames[start:end]...)
}

// PreviousAndNextKeyFrame returns the keyframe times strictly before and
// strictly after when. Either may be absent.
func (l *Layer) PreviousAndNextKeyFrame(when time.Duration) (prev time.Duration, hasPrev bool, next time.Duration, hasNext bool) {
	idx := sort.Search(len(l.KeyFrames), func(i int) bool { return l.KeyFrames[i] >= when })
	if idx > 0 {
		prev, hasPrev = l.KeyFrames[idx-1], true
	}
	for ; idx < len(l.KeyFrames); idx++ {
		if l.KeyFrames[idx] > when {
			next, hasNext = l.KeyFrames[idx], true
			break
		}
	}
	return prev, hasPrev, next, hasNext
}

// Attachment records where a stored element is attached: the layer and the
// keyframe start time.
type Attachment struct {
	LayerID uint64        `json:"layer_id"`
	When    time.Duration `json:"when"`
}
