package voice

import (
	"sort"
	"sync"
)

// Emitter fans provider events out to subscribed handlers.
type Emitter struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType]map[uint64]Handler
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType]map[uint64]Handler)}
}

// On registers h for t. The returned func is safe to call more than once.
func (e *Emitter) On(t EventType, h Handler) func() {
	if h == nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	if e.handlers[t] == nil {
		e.handlers[t] = make(map[uint64]Handler)
	}
	e.handlers[t][id] = h
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.handlers[t], id)
			e.mu.Unlock()
		})
	}
}

// Emit delivers ev to handlers in subscription order. Handlers run outside
// the emitter lock so they may subscribe or unsubscribe.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	registered := e.handlers[ev.Type]
	ids := make([]uint64, 0, len(registered))
	for id := range registered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, registered[id])
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribers returns the number of handlers registered for t.
func (e *Emitter) Subscribers(t EventType) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[t])
}
