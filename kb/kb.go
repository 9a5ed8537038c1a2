package kb

import (
	"sync"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventTopologyPublished EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Topology model.Topology
}

// KnowledgeBase is an in-memory, thread-safe holder for the most recently
// published constellation topology.
type KnowledgeBase struct {
	mu sync.RWMutex

	latest    model.Topology
	published bool
	version   uint64

	nextSub uint64
	subs    map[uint64]func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{subs: make(map[uint64]func(Event))}
}

// Publish replaces the latest topology and notifies subscribers. It returns
// the new version number.
func (kb *KnowledgeBase) Publish(t model.Topology) uint64 {
	kb.mu.Lock()
	kb.latest = t
	kb.published = true
	kb.version++
	version := kb.version
	subs := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		subs = append(subs, fn)
	}
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	event := Event{Type: EventTopologyPublished, Topology: t}
	for _, sub := range subs {
		sub(event)
	}
	return version
}

// Latest returns the most recent topology. ok is false until the first
// Publish.
func (kb *KnowledgeBase) Latest() (t model.Topology, version uint64, ok bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.latest, kb.version, kb.published
}

// Subscribe registers a callback for KB events. It returns an unsubscribe
// function that is safe to call more than once.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// Subscribers reports how many callbacks are registered.
func (kb *KnowledgeBase) Subscribers() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.subs)
}
