package client

import (
	"log"
	"sync"
)

// Observer receives every broadcast sample, in delivery order. Observers run
// synchronously inside the position-source callback and must return quickly;
// anything slow belongs on a detached task.
type Observer func(PositionSample)

// Watcher owns the single active position subscription. It caches the latest
// sample, fans it out to subscribed observers, and hands each sample to the
// publish sink without blocking the broadcast.
type Watcher struct {
	source  PositionSource
	publish func(PositionSample)
	opts    WatchOptions

	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
	last      *PositionSample
	watchID   WatchID
	active    bool
}

// NewWatcher wires a position source to an optional publish sink. The sink
// must not block; Publisher.Publish already satisfies that.
func NewWatcher(source PositionSource, opts WatchOptions, publish func(PositionSample)) *Watcher {
	return &Watcher{
		source:    source,
		publish:   publish,
		opts:      opts,
		observers: make(map[int]Observer),
	}
}

// Subscribe registers an observer and returns its unsubscribe function.
// If a sample has already been cached the observer is invoked with it
// synchronously before Subscribe returns, so late subscribers never wait for
// the next physical movement. Unsubscribing twice is harmless.
func (w *Watcher) Subscribe(observer Observer) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.observers[id] = observer
	last := w.last
	w.mu.Unlock()

	if last != nil {
		observer(*last)
	}

	return func() {
		w.mu.Lock()
		delete(w.observers, id)
		w.mu.Unlock()
	}
}

// Start activates the underlying position watch. Calling Start while already
// active is a no-op: there is never more than one live subscription.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.active {
		w.mu.Unlock()
		return nil
	}
	w.active = true
	w.mu.Unlock()

	id, err := w.source.Watch(w.opts, w.deliver, w.onSourceError)
	if err != nil {
		w.mu.Lock()
		w.active = false
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	w.watchID = id
	w.mu.Unlock()
	return nil
}

// Stop cancels the underlying watch. The cached sample is retained so late
// subscribers still see the last value; no further broadcasts occur until
// Start is called again.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		return
	}
	w.active = false
	id := w.watchID
	w.mu.Unlock()

	w.source.Cancel(id)
}

// LastSample returns the cached sample, if any.
func (w *Watcher) LastSample() (PositionSample, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return PositionSample{}, false
	}
	return *w.last, true
}

// deliver updates the cache and broadcasts to the observer set snapshotted at
// this moment; observers added mid-broadcast wait for the next sample.
func (w *Watcher) deliver(sample PositionSample) {
	w.mu.Lock()
	if !w.active {
		// A cancelled watch can still flush a buffered callback.
		w.mu.Unlock()
		return
	}
	w.last = &sample
	snapshot := make([]Observer, 0, len(w.observers))
	for _, observer := range w.observers {
		snapshot = append(snapshot, observer)
	}
	w.mu.Unlock()

	for _, observer := range snapshot {
		observer(sample)
	}

	if w.publish != nil {
		w.publish(sample)
	}
}

// onSourceError logs and drops the failed sample; the watch itself stays up.
func (w *Watcher) onSourceError(err error) {
	log.Printf("position source error: %v", err)
}
