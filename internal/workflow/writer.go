package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pianotech/tournee/internal/domain"
	"go.uber.org/zap"
)

// ErrWriterClosed is returned by Edit after Close.
var ErrWriterClosed = errors.New("field writer closed")

type fieldKey struct {
	id    string
	field domain.OverlayField
}

type pendingWrite struct {
	value string
	timer *time.Timer
	seq   uint64
}

// keyState serializes persistence of one key and remembers the newest
// sequence persisted, so an older value never lands after a newer one.
type keyState struct {
	mu   sync.Mutex
	done uint64
}

// FieldWriter coalesces free-text edits per (piano, field). Each edit
// updates the store at once and re-arms the key's timer; the value is
// persisted when the timer fires or on an explicit flush.
type FieldWriter struct {
	store *Store
	delay time.Duration

	mu       sync.Mutex
	pending  map[fieldKey]*pendingWrite
	keys     map[fieldKey]*keyState
	seq      uint64
	closed   bool
	inflight sync.WaitGroup

	onError func(id string, field domain.OverlayField, err error)
}

func NewFieldWriter(store *Store, delay time.Duration) *FieldWriter {
	return &FieldWriter{
		store:   store,
		delay:   delay,
		pending: make(map[fieldKey]*pendingWrite),
		keys:    make(map[fieldKey]*keyState),
	}
}

// OnError registers the callback for failed writes, including those fired
// by a timer. Failures are also logged.
func (w *FieldWriter) OnError(fn func(id string, field domain.OverlayField, err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Edit records a new value for the field. A pending write for the same key
// is replaced; the delay restarts.
func (w *FieldWriter) Edit(id string, field domain.OverlayField, value string) error {
	if _, err := domain.FieldPatch(field, value); err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}

	w.seq++
	seq := w.seq
	if err := w.store.editField(id, field, value, seq); err != nil {
		w.mu.Unlock()
		return err
	}

	key := fieldKey{id: id, field: field}
	if p, ok := w.pending[key]; ok {
		p.timer.Stop()
	}
	p := &pendingWrite{value: value, seq: seq}
	p.timer = time.AfterFunc(w.delay, func() { w.fire(key, seq) })
	w.pending[key] = p
	w.reportPending()
	w.mu.Unlock()

	w.store.notify(Event{Kind: EventPianosChanged, IDs: []string{id}})
	return nil
}

// Pending reports whether a write for the key is waiting on its timer.
func (w *FieldWriter) Pending(id string, field domain.OverlayField) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[fieldKey{id: id, field: field}]
	return ok
}

// Flush persists the pending value of one key now.
func (w *FieldWriter) Flush(ctx context.Context, id string, field domain.OverlayField) error {
	key := fieldKey{id: id, field: field}
	w.mu.Lock()
	p, ok := w.take(key)
	w.mu.Unlock()
	if !ok {
		return nil
	}
	return w.persist(ctx, key, p)
}

// FlushAll persists every pending value now.
func (w *FieldWriter) FlushAll(ctx context.Context) error {
	w.mu.Lock()
	keys := make([]fieldKey, 0, len(w.pending))
	for k := range w.pending {
		keys = append(keys, k)
	}
	taken := make([]*pendingWrite, 0, len(keys))
	for _, k := range keys {
		p, _ := w.take(k)
		taken = append(taken, p)
	}
	w.mu.Unlock()

	var errs []error
	for i, k := range keys {
		if err := w.persist(ctx, k, taken[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending writes, waits for timer-fired writes in flight and
// rejects further edits.
func (w *FieldWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	err := w.FlushAll(ctx)
	w.inflight.Wait()
	return err
}

// take removes the pending write for key and stops its timer. Caller holds mu.
func (w *FieldWriter) take(key fieldKey) (*pendingWrite, bool) {
	p, ok := w.pending[key]
	if !ok {
		return nil, false
	}
	p.timer.Stop()
	delete(w.pending, key)
	if _, ok := w.keys[key]; !ok {
		w.keys[key] = &keyState{}
	}
	w.reportPending()
	return p, true
}

func (w *FieldWriter) fire(key fieldKey, seq uint64) {
	w.mu.Lock()
	p, ok := w.pending[key]
	if !ok || p.seq != seq {
		// Superseded by a later edit or taken by a flush.
		w.mu.Unlock()
		return
	}
	w.take(key)
	w.inflight.Add(1)
	w.mu.Unlock()

	defer w.inflight.Done()
	_ = w.persist(context.Background(), key, p)
}

func (w *FieldWriter) persist(ctx context.Context, key fieldKey, p *pendingWrite) error {
	w.mu.Lock()
	ks := w.keys[key]
	onError := w.onError
	w.mu.Unlock()

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if p.seq < ks.done {
		return nil
	}
	ks.done = p.seq

	patch, _ := domain.FieldPatch(key.field, p.value)
	rev := w.store.revision(key.id)
	snap, _ := w.store.Piano(key.id)
	settle := func() { w.store.settleField(key.id, key.field, p.seq) }
	err := w.store.persist(ctx, "field-write", key.id, snapshot{piano: snap, rev: rev}, patch, settle)
	if err == nil {
		return nil
	}

	w.store.logger.Warn("field write failed",
		zap.String("piano_id", key.id),
		zap.String("field", string(key.field)),
		zap.Error(err),
	)
	w.store.notify(Event{Kind: EventPianosChanged, IDs: []string{key.id}})
	if onError != nil {
		onError(key.id, key.field, err)
	}
	return err
}

// reportPending publishes the number of waiting writes. Caller holds mu.
func (w *FieldWriter) reportPending() {
	if w.store.metrics != nil {
		w.store.metrics.PendingWrites.Set(float64(len(w.pending)))
	}
}
