package gowizard

import (
	"github.com/sasha-s/go-deadlock"
)

// emitter fans events out to registered listeners in registration order.
type emitter struct {
	mu        deadlock.RWMutex
	nextID    int
	order     []int
	listeners map[int]Listener
	logger    Logger
}

func newEmitter(logger Logger) *emitter {
	return &emitter{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// subscribe registers l and returns a function removing it again.
func (em *emitter) subscribe(l Listener) func() {
	em.mu.Lock()
	defer em.mu.Unlock()

	id := em.nextID
	em.nextID++
	em.listeners[id] = l
	em.order = append(em.order, id)

	return func() {
		em.mu.Lock()
		defer em.mu.Unlock()
		if _, ok := em.listeners[id]; !ok {
			return
		}
		delete(em.listeners, id)
		for i, v := range em.order {
			if v == id {
				em.order = append(em.order[:i], em.order[i+1:]...)
				break
			}
		}
	}
}

// emit delivers events to a snapshot of the listeners. A panicking listener
// is logged and does not stop delivery to the others.
func (em *emitter) emit(events ...Event) {
	if len(events) == 0 {
		return
	}

	em.mu.RLock()
	snapshot := make([]Listener, 0, len(em.order))
	for _, id := range em.order {
		snapshot = append(snapshot, em.listeners[id])
	}
	em.mu.RUnlock()

	for _, ev := range events {
		for _, l := range snapshot {
			em.deliver(l, ev)
		}
	}
}

func (em *emitter) deliver(l Listener, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			em.logger.Error("Listener panicked on %s event: %v", ev.Type, rec)
		}
	}()
	l(ev)
}
