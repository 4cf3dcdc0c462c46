// Package core implements the editing core of a vector-animation document:
// a single-writer editor that serializes published edit batches, applies them
// against the in-memory document, persists the resulting storage commands and
// retires each batch together with its generated inverse.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"animcore/pkg/animation"
	"animcore/pkg/animation/encoding"
)

// ErrEditorClosed is returned by operations on a closed editor.
var ErrEditorClosed = errors.New("editor is closed")

// RetiredEdit reports one fully applied batch. CommittedEdits reflects the
// final, ID-resolved edits (and undo edits rewritten to their outcome form),
// which may differ from the edits originally published. ReverseEdits, applied
// immediately after, restores the prior observable state; ReverseError is
// non-nil when no inverse could be constructed (ErrNotReversible) or when the
// batch was refused by a latched storage failure.
type RetiredEdit struct {
	CommittedEdits []animation.AnimationEdit
	ReverseEdits   animation.ReversedEdits
	ReverseError   error
}

type publishRequest struct {
	edits []animation.AnimationEdit
}

type queryRequest struct {
	fn   func(*document)
	done chan struct{}
}

// Editor owns a document and applies published edit batches one at a time on
// a dedicated goroutine. All reads go through the same goroutine and return
// immutable snapshots, so no document state is ever shared.
type Editor struct {
	logger     Logger
	metrics    MetricsRecorder
	tracer     Tracer
	audit      AuditRecorder
	clock      Clock
	queueDepth int

	publishCh chan publishRequest
	queryCh   chan queryRequest
	stopCh    chan struct{}
	doneCh    chan struct{}
	hub       *retirementHub

	mu       sync.Mutex
	inFlight int
	waiters  []chan struct{}
	closed   bool
}

// NewEditor opens (or initializes) the document persisted behind backend and
// starts the editor's owner goroutine.
func NewEditor(ctx context.Context, backend animation.Backend, opts ...Option) (*Editor, error) {
	e := &Editor{
		logger:     noopLogger{},
		tracer:     noopTracer{},
		clock:      systemClock{},
		queueDepth: 16,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		hub:        newRetirementHub(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.publishCh = make(chan publishRequest, e.queueDepth)
	e.queryCh = make(chan queryRequest)

	doc := newDocument(backend, e.logger)
	if err := doc.load(ctx); err != nil {
		return nil, fmt.Errorf("open editor: %w", err)
	}
	go e.run(doc)
	return e, nil
}

// Publish enqueues a batch for application and returns once the batch has
// been accepted into the serialized queue, not once it has applied. Batches
// apply and retire in publication order.
func (e *Editor) Publish(ctx context.Context, edits []animation.AnimationEdit) error {
	if len(edits) == 0 {
		return nil
	}
	batch := make([]animation.AnimationEdit, len(edits))
	copy(batch, edits)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEditorClosed
	}
	e.inFlight++
	e.mu.Unlock()

	select {
	case e.publishCh <- publishRequest{edits: batch}:
		return nil
	case <-ctx.Done():
		e.finishBatch()
		return ctx.Err()
	}
}

// WhenEmpty blocks until every previously published batch has fully applied.
func (e *Editor) WhenEmpty(ctx context.Context) error {
	e.mu.Lock()
	if e.inFlight == 0 {
		e.mu.Unlock()
		return nil
	}
	waiter := make(chan struct{})
	e.waiters = append(e.waiters, waiter)
	e.mu.Unlock()

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetiredEdits subscribes to the retirement stream. The editor never blocks
// on slow subscribers; each subscription buffers retirements until read. The
// channel closes when the editor closes.
func (e *Editor) RetiredEdits() <-chan RetiredEdit {
	return e.hub.subscribe()
}

// Close drains the publish queue, stops the owner goroutine and closes all
// retirement subscriptions. Further publishes fail with ErrEditorClosed.
func (e *Editor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.doneCh
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.stopCh)
	<-e.doneCh
	return nil
}

func (e *Editor) finishBatch() {
	e.mu.Lock()
	e.inFlight--
	if e.inFlight == 0 {
		for _, waiter := range e.waiters {
			close(waiter)
		}
		e.waiters = nil
	}
	e.mu.Unlock()
}

// emptyWaiter reports whether the publish queue is already empty, or hands
// back a channel closed once it becomes empty.
func (e *Editor) emptyWaiter() (<-chan struct{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight == 0 {
		return nil, true
	}
	waiter := make(chan struct{})
	e.waiters = append(e.waiters, waiter)
	return waiter, false
}

func (e *Editor) run(doc *document) {
	defer close(e.doneCh)
	defer e.hub.close()
	defer func() {
		if err := doc.backend.Close(); err != nil {
			e.logger.Error("close storage backend", "error", err)
		}
	}()

	for {
		select {
		case req := <-e.publishCh:
			e.applyBatch(doc, req)
		case q := <-e.queryCh:
			q.fn(doc)
			close(q.done)
		case <-e.stopCh:
			for {
				select {
				case req := <-e.publishCh:
					e.applyBatch(doc, req)
				case q := <-e.queryCh:
					q.fn(doc)
					close(q.done)
				default:
					waiter, empty := e.emptyWaiter()
					if empty {
						return
					}
					// A publisher incremented the counter but has not
					// finished the channel send yet, or cancelled midway.
					select {
					case req := <-e.publishCh:
						e.applyBatch(doc, req)
					case <-waiter:
					}
				}
			}
		}
	}
}

// applyBatch applies one published batch to completion: every edit dispatched
// in order, the coalesced storage commands flushed, and exactly one
// retirement emitted.
func (e *Editor) applyBatch(doc *document, req publishRequest) {
	defer e.finishBatch()

	ctx := context.Background()
	started := e.clock.Now()
	ctx, span := e.tracer.Start(ctx, "publish_batch")

	retired, err := e.applyBatchEdits(ctx, doc, req.edits)
	success := err == nil && retired.ReverseError == nil

	if e.metrics != nil {
		e.metrics.Observe(ctx, "publish_batch", success, e.clock.Now().Sub(started))
	}
	if e.audit != nil {
		status := AuditStatusSuccess
		details := ""
		if !success {
			status = AuditStatusError
			if err != nil {
				details = err.Error()
			} else {
				details = retired.ReverseError.Error()
			}
		}
		e.audit.Record(ctx, AuditEntry{
			Operation: "publish_batch",
			Status:    status,
			EditCount: len(req.edits),
			Details:   details,
			At:        e.clock.Now(),
		})
	}
	span.End(err)

	e.hub.publish(retired)
}

func (e *Editor) applyBatchEdits(ctx context.Context, doc *document, edits []animation.AnimationEdit) (RetiredEdit, error) {
	if doc.failure != nil {
		e.logger.Warn("batch refused: storage failure latched", "error", doc.failure)
		return RetiredEdit{
			CommittedEdits: edits,
			ReverseError:   animation.NewStorageFailure(animation.StorageErrorCannotContinue, doc.failure),
		}, nil
	}

	pending := newPendingChanges()
	var reverse animation.ReversedEdits
	var reverseErr error

	for i := range edits {
		if edits[i].MissingPayload() {
			e.logger.Warn("edit without payload ignored", "kind", edits[i].Kind)
			continue
		}
		var stepReverse animation.ReversedEdits
		var err error
		if edits[i].Kind == animation.EditUndo {
			stepReverse, err = doc.handleUndoEdit(ctx, &edits[i], pending)
		} else {
			stepReverse, err = doc.applyEdit(ctx, &edits[i], pending)
			if err == nil || errors.Is(err, ErrNotReversible) {
				pending.appendEdit(encoding.MarshalEdit(edits[i]))
			}
		}
		if err != nil {
			if errors.Is(err, ErrNotReversible) {
				reverseErr = err
			} else {
				if doc.failure == nil {
					doc.failure = err
				}
				e.logger.Error("batch aborted", "error", err)
				return RetiredEdit{CommittedEdits: edits, ReverseError: err}, err
			}
		}
		reverse = reverse.PushFront(stepReverse...)
	}

	if !pending.empty() {
		if _, err := doc.run(ctx, pending.commands()); err != nil {
			e.logger.Error("batch flush failed", "error", err)
			return RetiredEdit{CommittedEdits: edits, ReverseError: err}, err
		}
		doc.editLogLen += len(pending.logLines)
	}

	return RetiredEdit{
		CommittedEdits: edits,
		ReverseEdits:   reverse,
		ReverseError:   reverseErr,
	}, nil
}

// query runs fn on the owner goroutine and waits for it to finish.
func (e *Editor) query(ctx context.Context, fn func(*document)) error {
	q := queryRequest{fn: fn, done: make(chan struct{})}
	select {
	case e.queryCh <- q:
	case <-e.doneCh:
		return ErrEditorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-q.done:
		return nil
	case <-e.doneCh:
		return ErrEditorClosed
	}
}

// Size returns the document canvas dimensions.
func (e *Editor) Size(ctx context.Context) (width, height float64, err error) {
	err = e.query(ctx, func(d *document) {
		width, height = d.props.Width, d.props.Height
	})
	return width, height, err
}

// FrameLength returns the duration of one animation frame.
func (e *Editor) FrameLength(ctx context.Context) (length time.Duration, err error) {
	err = e.query(ctx, func(d *document) {
		length = d.props.FrameLength
	})
	return length, err
}

// DocumentDuration returns the total animation duration.
func (e *Editor) DocumentDuration(ctx context.Context) (duration time.Duration, err error) {
	err = e.query(ctx, func(d *document) {
		duration = d.props.Duration
	})
	return duration, err
}

// GetFrameAtTime returns an immutable snapshot of the keyframe covering when
// on the given layer. ok is false when no keyframe starts at or before when.
func (e *Editor) GetFrameAtTime(ctx context.Context, layerID uint64, when time.Duration) (frame Frame, ok bool, err error) {
	var snapErr error
	err = e.query(ctx, func(d *document) {
		frame, ok, snapErr = d.snapshotFrame(ctx, layerID, when)
	})
	if err == nil {
		err = snapErr
	}
	return frame, ok, err
}

// KeyFramesDuring returns the layer's keyframe start times within
// [from, until).
func (e *Editor) KeyFramesDuring(ctx context.Context, layerID uint64, from, until time.Duration) (times []time.Duration, err error) {
	err = e.query(ctx, func(d *document) {
		if layer, ok := d.layers[layerID]; ok {
			times = layer.layer.KeyFramesDuring(from, until)
		}
	})
	return times, err
}

// KeyFrameNeighbors reports the keyframe times strictly around an instant.
type KeyFrameNeighbors struct {
	Previous    time.Duration
	HasPrevious bool
	Next        time.Duration
	HasNext     bool
}

// PreviousAndNextKeyFrame returns the layer's keyframe times strictly before
// and after when.
func (e *Editor) PreviousAndNextKeyFrame(ctx context.Context, layerID uint64, when time.Duration) (neighbors KeyFrameNeighbors, err error) {
	err = e.query(ctx, func(d *document) {
		if layer, ok := d.layers[layerID]; ok {
			neighbors.Previous, neighbors.HasPrevious, neighbors.Next, neighbors.HasNext = layer.layer.PreviousAndNextKeyFrame(when)
		}
	})
	return neighbors, err
}

// LayerProperties returns a layer's presentation properties.
func (e *Editor) LayerProperties(ctx context.Context, layerID uint64) (props animation.LayerProperties, ok bool, err error) {
	err = e.query(ctx, func(d *document) {
		if layer, exists := d.layers[layerID]; exists {
			props, ok = layer.layer.Properties, true
		}
	})
	return props, ok, err
}

// EditLogLength returns the number of persisted edits.
func (e *Editor) EditLogLength(ctx context.Context) (length int, err error) {
	err = e.query(ctx, func(d *document) {
		length = d.editLogLen
	})
	return length, err
}

// LatchedError returns the storage failure currently blocking the editor,
// or nil.
func (e *Editor) LatchedError(ctx context.Context) (latched error, err error) {
	err = e.query(ctx, func(d *document) {
		latched = d.failure
	})
	return latched, err
}

// ClearError clears a latched storage failure so the editor accepts edits
// again. The caller owns reconciling any state that diverged.
func (e *Editor) ClearError(ctx context.Context) error {
	return e.query(ctx, func(d *document) {
		if d.failure != nil {
			e.logger.Info("latched storage failure cleared", "error", d.failure)
			d.failure = nil
		}
	})
}

// retirementHub fans retirements out to subscribers without ever blocking
// the editor's owner goroutine.
type retirementHub struct {
	mu     sync.Mutex
	subs   []*retirementSub
	closed bool
}

func newRetirementHub() *retirementHub {
	return &retirementHub{}
}

func (h *retirementHub) subscribe() <-chan RetiredEdit {
	sub := &retirementSub{
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		out:    make(chan RetiredEdit),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.out)
		return sub.out
	}
	h.subs = append(h.subs, sub)
	h.mu.Unlock()
	go sub.forward()
	return sub.out
}

func (h *retirementHub) publish(retired RetiredEdit) {
	h.mu.Lock()
	subs := append([]*retirementSub(nil), h.subs...)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.push(retired)
	}
}

func (h *retirementHub) close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.closed = true
	h.mu.Unlock()
	for _, sub := range subs {
		sub.finish()
	}
}

// retirementSub buffers retirements so publish order is preserved without
// backpressure on the editor. quit closes when the hub shuts down, so the
// forward goroutine never outlives the editor waiting on an abandoned
// subscriber.
type retirementSub struct {
	mu     sync.Mutex
	queue  []RetiredEdit
	done   bool
	signal chan struct{}
	quit   chan struct{}
	out    chan RetiredEdit
}

func (s *retirementSub) push(retired RetiredEdit) {
	s.mu.Lock()
	s.queue = append(s.queue, retired)
	s.mu.Unlock()
	s.wake()
}

func (s *retirementSub) finish() {
	s.mu.Lock()
	if !s.done {
		s.done = true
		close(s.quit)
	}
	s.mu.Unlock()
	s.wake()
}

func (s *retirementSub) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *retirementSub) forward() {
	for range s.signal {
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				done := s.done
				s.mu.Unlock()
				if done {
					close(s.out)
					return
				}
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			select {
			case s.out <- next:
			default:
				// Nobody is receiving right now; keep waiting unless the
				// editor has closed, in which case the subscriber may be
				// gone for good.
				select {
				case s.out <- next:
				case <-s.quit:
					close(s.out)
					return
				}
			}
		}
	}
}
