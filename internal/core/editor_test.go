package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"animcore/internal/infra/storage/memory"
	"animcore/pkg/animation"
)

func newTestEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	editor, err := NewEditor(context.Background(), memory.NewStore(), opts...)
	if err != nil {
		t.Fatalf("NewEditor: %v", err)
	}
	t.Cleanup(func() { _ = editor.Close() })
	return editor
}

func publishAndWait(t *testing.T, editor *Editor, edits ...animation.AnimationEdit) {
	t.Helper()
	ctx := context.Background()
	if err := editor.Publish(ctx, edits); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := editor.WhenEmpty(ctx); err != nil {
		t.Fatalf("WhenEmpty: %v", err)
	}
}

func addKeyFrame(layerID uint64, when time.Duration) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind:  animation.EditLayer,
		Layer: &animation.LayerEditTarget{LayerID: layerID, Edit: animation.LayerEdit{Kind: animation.LayerEditAddKeyFrame, When: when}},
	}
}

func selectBrushEdit(layerID uint64, when time.Duration) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind: animation.EditLayer,
		Layer: &animation.LayerEditTarget{
			LayerID: layerID,
			Edit: animation.LayerEdit{
				Kind: animation.LayerEditPaint,
				When: when,
				Paint: &animation.PaintEdit{
					Kind:       animation.PaintSelectBrush,
					ID:         animation.UnassignedID(),
					Definition: animation.BrushDefinition{Kind: animation.BrushSimple},
					Style:      animation.BrushDraw,
				},
			},
		},
	}
}

func createCircle(layerID uint64, when time.Duration, x, y, r float64) animation.AnimationEdit {
	return animation.AnimationEdit{
		Kind: animation.EditLayer,
		Layer: &animation.LayerEditTarget{
			LayerID: layerID,
			Edit: animation.LayerEdit{
				Kind: animation.LayerEditPaint,
				When: when,
				Paint: &animation.PaintEdit{
					Kind:  animation.PaintCreateShape,
					ID:    animation.UnassignedID(),
					Width: 1,
					Shape: animation.Shape{Kind: animation.ShapeCircle, Center: animation.Point{X: x, Y: y}, Radius: r},
				},
			},
		},
	}
}

func TestEditsWithoutPayloadAreDropped(t *testing.T) {
	editor := newTestEditor(t)
	ctx := context.Background()

	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditLayer},
		animation.AnimationEdit{Kind: animation.EditElement},
		animation.AnimationEdit{Kind: animation.EditMotion},
		animation.AnimationEdit{Kind: animation.EditUndo},
		animation.AnimationEdit{
			Kind:  animation.EditLayer,
			Layer: &animation.LayerEditTarget{LayerID: 1, Edit: animation.LayerEdit{Kind: animation.LayerEditPaint}},
		},
		animation.AnimationEdit{Kind: animation.EditSetSize, Width: 640, Height: 480},
	)

	width, height, err := editor.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if width != 640 || height != 480 {
		t.Fatalf("canvas = %vx%v, want 640x480 applied after the dropped edits", width, height)
	}
	if length, err := editor.EditLogLength(ctx); err != nil || length != 1 {
		t.Fatalf("edit log length = %d, %v; want only the resize logged", length, err)
	}
}

func TestAbandonedSubscriberDoesNotLeakForwarder(t *testing.T) {
	before := runtime.NumGoroutine()

	editor, err := NewEditor(context.Background(), memory.NewStore())
	if err != nil {
		t.Fatalf("NewEditor: %v", err)
	}
	_ = editor.RetiredEdits()
	publishAndWait(t, editor, animation.AnimationEdit{Kind: animation.EditSetSize, Width: 640, Height: 480})
	if err := editor.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("%d goroutines still running, want at most %d after close", runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFreshDocumentHasDefaultProperties(t *testing.T) {
	editor := newTestEditor(t)
	ctx := context.Background()

	width, height, err := editor.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if width != 1920 || height != 1080 {
		t.Fatalf("fresh canvas = %vx%v, want 1920x1080", width, height)
	}
	if length, err := editor.EditLogLength(ctx); err != nil || length != 0 {
		t.Fatalf("fresh edit log length = %d, %v", length, err)
	}
}

func TestSetSizeIsObservableAfterPublish(t *testing.T) {
	editor := newTestEditor(t)
	publishAndWait(t, editor, animation.AnimationEdit{Kind: animation.EditSetSize, Width: 1080, Height: 720})

	width, height, err := editor.Size(context.Background())
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if width != 1080 || height != 720 {
		t.Fatalf("canvas = %vx%v, want 1080x720", width, height)
	}
}

func TestPaintingOnNearestKeyFrame(t *testing.T) {
	editor := newTestEditor(t)
	ctx := context.Background()

	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditAddNewLayer, LayerID: 2},
		addKeyFrame(2, 0),
		selectBrushEdit(2, 442*time.Millisecond),
		createCircle(2, 442*time.Millisecond, 10, 10, 5),
		createCircle(2, 442*time.Millisecond, 30, 30, 5),
	)

	frame, ok, err := editor.GetFrameAtTime(ctx, 2, 442*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("GetFrameAtTime: ok=%v err=%v", ok, err)
	}
	if frame.Start != 0 {
		t.Fatalf("frame start = %v, want keyframe at 0", frame.Start)
	}
	elements := frame.VectorElements()
	if len(elements) != 2 {
		t.Fatalf("frame holds %d elements, want 2 shapes", len(elements))
	}
	for i, wrapper := range elements {
		if wrapper.Vector.Kind != animation.VectorShape {
			t.Fatalf("element %d kind = %s, want shape", i, wrapper.Vector.Kind)
		}
		state := frame.ApplyPropertiesForElement(wrapper.ID)
		if !state.HasDefinition || state.Definition.Kind != animation.BrushSimple {
			t.Fatalf("element %d missing brush definition: %+v", i, state)
		}
	}
}

func TestPaintWithoutKeyFrameIsSilentlyDropped(t *testing.T) {
	editor := newTestEditor(t)
	ctx := context.Background()

	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditAddNewLayer, LayerID: 1},
		addKeyFrame(1, time.Second),
		createCircle(1, 500*time.Millisecond, 0, 0, 1), // before the first keyframe
	)

	if _, ok, err := editor.GetFrameAtTime(ctx, 1, 500*time.Millisecond); err != nil || ok {
		t.Fatalf("expected no frame before the first keyframe, ok=%v err=%v", ok, err)
	}
	frame, ok, err := editor.GetFrameAtTime(ctx, 1, time.Second)
	if err != nil || !ok {
		t.Fatalf("GetFrameAtTime at keyframe: ok=%v err=%v", ok, err)
	}
	if n := len(frame.VectorElements()); n != 0 {
		t.Fatalf("dropped paint still produced %d elements", n)
	}
}

func TestRetirementsFollowPublicationOrder(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()
	ctx := context.Background()

	const batches = 20
	for i := 0; i < batches; i++ {
		edit := animation.AnimationEdit{Kind: animation.EditSetLength, Duration: time.Duration(i+1) * time.Second}
		if err := editor.Publish(ctx, []animation.AnimationEdit{edit}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	if err := editor.WhenEmpty(ctx); err != nil {
		t.Fatalf("WhenEmpty: %v", err)
	}

	for i := 0; i < batches; i++ {
		r := <-retired
		if len(r.CommittedEdits) != 1 {
			t.Fatalf("retirement %d carries %d edits", i, len(r.CommittedEdits))
		}
		if got := r.CommittedEdits[0].Duration; got != time.Duration(i+1)*time.Second {
			t.Fatalf("retirement %d out of order: %v", i, got)
		}
	}
}

func TestCommittedEditsMatchPublishedWhenIDsAssigned(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()

	edits := []animation.AnimationEdit{
		{Kind: animation.EditAddNewLayer, LayerID: 1},
		addKeyFrame(1, 0),
		{Kind: animation.EditSetSize, Width: 640, Height: 480},
	}
	publishAndWait(t, editor, edits...)

	r := <-retired
	if len(r.CommittedEdits) != len(edits) {
		t.Fatalf("committed %d edits, want %d", len(r.CommittedEdits), len(edits))
	}
	for i := range edits {
		if r.CommittedEdits[i].Kind != edits[i].Kind {
			t.Fatalf("committed[%d] = %s, want %s", i, r.CommittedEdits[i].Kind, edits[i].Kind)
		}
	}
	if r.ReverseError != nil {
		t.Fatalf("unexpected reverse error: %v", r.ReverseError)
	}
}

func TestCreateShapeRetiresWithAssignedID(t *testing.T) {
	editor := newTestEditor(t)
	retired := editor.RetiredEdits()

	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditAddNewLayer, LayerID: 1},
		addKeyFrame(1, 0),
		createCircle(1, 0, 0, 0, 1),
	)

	r := <-retired
	paint := r.CommittedEdits[2].Layer.Edit.Paint
	if _, assigned := paint.ID.Value(); !assigned {
		t.Fatalf("retired create-shape still carries an unassigned ID")
	}
	// The inverse of a creation is its deletion.
	var sawDelete bool
	for _, rev := range r.ReverseEdits {
		if rev.Kind == animation.EditElement && rev.Element.Edit.Kind == animation.ElementDelete {
			sawDelete = true
		}
	}
	if !sawDelete {
		t.Fatalf("reverse edits carry no delete: %+v", r.ReverseEdits)
	}
}

func TestEditLogGrowsWithAppliedEdits(t *testing.T) {
	editor := newTestEditor(t)
	ctx := context.Background()

	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditAddNewLayer, LayerID: 1},
		addKeyFrame(1, 0),
	)
	length, err := editor.EditLogLength(ctx)
	if err != nil {
		t.Fatalf("EditLogLength: %v", err)
	}
	if length != 2 {
		t.Fatalf("edit log length = %d, want 2", length)
	}
}

func TestKeyFrameQueries(t *testing.T) {
	editor := newTestEditor(t)
	ctx := context.Background()

	publishAndWait(t, editor,
		animation.AnimationEdit{Kind: animation.EditAddNewLayer, LayerID: 1},
		addKeyFrame(1, 0),
		addKeyFrame(1, time.Second),
		addKeyFrame(1, 2*time.Second),
	)

	times, err := editor.KeyFramesDuring(ctx, 1, 0, 2*time.Second)
	if err != nil {
		t.Fatalf("KeyFramesDuring: %v", err)
	}
	if len(times) != 2 || times[0] != 0 || times[1] != time.Second {
		t.Fatalf("KeyFramesDuring = %v", times)
	}

	neighbors, err := editor.PreviousAndNextKeyFrame(ctx, 1, time.Second)
	if err != nil {
		t.Fatalf("PreviousAndNextKeyFrame: %v", err)
	}
	if !neighbors.HasPrevious || neighbors.Previous != 0 || !neighbors.HasNext || neighbors.Next != 2*time.Second {
		t.Fatalf("neighbors = %+v", neighbors)
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	editor := newTestEditor(t)
	if err := editor.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := editor.Publish(context.Background(), []animation.AnimationEdit{{Kind: animation.EditSetSize, Width: 1, Height: 1}})
	if !errors.Is(err, ErrEditorClosed) {
		t.Fatalf("Publish after close = %v, want ErrEditorClosed", err)
	}
}

// failingBackend starts delegating to a real in-memory store and fails every
// batch after the trigger fires.
type failingBackend struct {
	mu       sync.Mutex
	inner    *memory.Store
	failing  bool
	failures int
}

func (b *failingBackend) RunCommands(ctx context.Context, commands []animation.StorageCommand) ([]animation.StorageResponse, error) {
	b.mu.Lock()
	failing := b.failing
	if failing {
		b.failures++
	}
	b.mu.Unlock()
	if failing {
		return nil, animation.NewStorageFailure(animation.StorageErrorGeneral, fmt.Errorf("disk on fire"))
	}
	return b.inner.RunCommands(ctx, commands)
}

func (b *failingBackend) Close() error { return b.inner.Close() }

func (b *failingBackend) fail() {
	b.mu.Lock()
	b.failing = true
	b.mu.Unlock()
}

func (b *failingBackend) recover() {
	b.mu.Lock()
	b.failing = false
	b.mu.Unlock()
}

func TestStorageFailureLatchesUntilCleared(t *testing.T) {
	backend := &failingBackend{inner: memory.NewStore()}
	editor, err := NewEditor(context.Background(), backend)
	if err != nil {
		t.Fatalf("NewEditor: %v", err)
	}
	t.Cleanup(func() { _ = editor.Close() })
	retired := editor.RetiredEdits()
	ctx := context.Background()

	backend.fail()
	publishAndWait(t, editor, animation.AnimationEdit{Kind: animation.EditSetSize, Width: 2, Height: 2})
	r := <-retired
	if r.ReverseError == nil {
		t.Fatalf("failed batch retired without reverse error")
	}

	// The failure is latched: later batches are refused even though the
	// backend recovered.
	backend.recover()
	publishAndWait(t, editor, animation.AnimationEdit{Kind: animation.EditSetSize, Width: 3, Height: 3})
	r = <-retired
	var failure *animation.StorageFailure
	if r.ReverseError == nil || !errors.As(r.ReverseError, &failure) || failure.Kind != animation.StorageErrorCannotContinue {
		t.Fatalf("latched refusal = %v, want cannot_continue storage failure", r.ReverseError)
	}
	if width, _, _ := editor.Size(ctx); width == 3 {
		t.Fatalf("refused batch still mutated the document")
	}

	latched, err := editor.LatchedError(ctx)
	if err != nil || latched == nil {
		t.Fatalf("LatchedError = %v, %v", latched, err)
	}
	if err := editor.ClearError(ctx); err != nil {
		t.Fatalf("ClearError: %v", err)
	}
	publishAndWait(t, editor, animation.AnimationEdit{Kind: animation.EditSetSize, Width: 4, Height: 4})
	r = <-retired
	if r.ReverseError != nil {
		t.Fatalf("batch after ClearError failed: %v", r.ReverseError)
	}
	if width, _, _ := editor.Size(ctx); width != 4 {
		t.Fatalf("document did not accept edits after ClearError")
	}
}

func TestWhenEmptyReturnsImmediatelyWhenIdle(t *testing.T) {
	editor := newTestEditor(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := editor.WhenEmpty(ctx); err != nil {
		t.Fatalf("WhenEmpty on idle editor: %v", err)
	}
}
