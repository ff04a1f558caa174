// Package stream provides the thread-safe pub/sub hub that fans job
// events out to live observers.
package stream

import (
	"sync"

	"go.uber.org/zap"
)

// Wire event names.
const (
	EventSnapshot   = "jobs.snapshot"
	EventJobCreated = "job.created"
	EventJobUpdated = "job.updated"
)

// DefaultBufferSize is the per-subscriber queue depth used when no
// explicit size is configured.
const DefaultBufferSize = 256

// Subscriber is one registered delivery queue. Receive from C(); call
// Hub.Unsubscribe when done. The hub never closes the channel, so the
// owning goroutine can drain and close it without double-close races.
type Subscriber struct {
	ch      chan interface{}
	dropped int // oldest events shed under backpressure; guarded by hub mu
}

// C is the subscriber's delivery channel.
func (s *Subscriber) C() <-chan interface{} {
	return s.ch
}

// Hub broadcasts events to every subscriber. Publish is safe from any
// goroutine and never blocks on a slow consumer: when a subscriber's
// bounded queue is full, that subscriber's oldest buffered event is
// dropped to make room. Delivery order per subscriber matches publish
// order; there is no cross-subscriber ordering guarantee.
type Hub struct {
	maxBuffer int
	logger    *zap.SugaredLogger

	mu          sync.Mutex
	snapshot    func() interface{}
	subscribers map[*Subscriber]struct{}
}

// NewHub creates a hub whose subscribers buffer up to maxBuffer events.
func NewHub(maxBuffer int, log *zap.SugaredLogger) *Hub {
	if maxBuffer < 1 {
		maxBuffer = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		maxBuffer:   maxBuffer,
		logger:      log,
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// SetSnapshot installs the provider for the synthesized baseline event a
// new subscriber receives before any live event.
func (h *Hub) SetSnapshot(fn func() interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Subscribe registers a new bounded delivery queue. The snapshot event is
// enqueued under the hub lock, so no concurrent publish can be delivered
// ahead of the baseline.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{ch: make(chan interface{}, h.maxBuffer)}
	if h.snapshot != nil {
		sub.ch <- h.snapshot()
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

// Unsubscribe deregisters the subscriber; future publishes ignore it.
// Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub)
}

// Publish delivers event to every currently subscribed queue.
func (h *Hub) Publish(event interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		h.sendLocked(sub, event)
	}
}

// sendLocked enqueues without ever blocking the publisher: a full queue
// sheds its oldest buffered event first. REQUIRES: h.mu held (which also
// makes the drain-then-send below race-free).
func (h *Hub) sendLocked(sub *Subscriber, event interface{}) {
	select {
	case sub.ch <- event:
		return
	default:
	}

	// Queue full: drop the oldest event, keep the newest.
	select {
	case <-sub.ch:
		sub.dropped++
	default:
	}
	select {
	case sub.ch <- event:
	default:
		// Unreachable while publishers hold the hub lock; guard anyway
		// rather than risk blocking a publisher.
		sub.dropped++
	}

	if sub.dropped == 1 || sub.dropped%100 == 0 {
		h.logger.Debugw("Slow subscriber shedding events",
			"dropped_total", sub.dropped,
			"buffer", h.maxBuffer)
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
