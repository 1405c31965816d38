package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during tick N are
// delivered by the DispatchAll that follows the next SwapBuffers, in the
// order they were emitted regardless of type.
type Bus struct {
	mu       sync.Mutex // protects handler registration
	front    []envelope
	back     []envelope
	handlers map[reflect.Type][]*handler
	nextID   uint64
}

type envelope struct {
	typ   reflect.Type
	event any
}

type handler struct {
	id   uint64
	call func(any)
}

func NewBus() *Bus {
	return &Bus{
		front:    make([]envelope, 0, 64),
		back:     make([]envelope, 0, 64),
		handlers: make(map[reflect.Type][]*handler),
	}
}

// Emit queues an event into the back buffer.
func Emit[T any](b *Bus, event T) {
	b.back = append(b.back, envelope{typ: reflect.TypeFor[T](), event: event})
}

// Subscribe registers a typed handler for events of type T and returns a func
// that removes it again.
func Subscribe[T any](b *Bus, fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeFor[T]()
	b.nextID++
	h := &handler{id: b.nextID, call: func(ev any) { fn(ev.(T)) }}
	b.handlers[t] = append(b.handlers[t], h)
	return func() { b.remove(t, h.id) }
}

func (b *Bus) remove(t reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[t]
	for i, h := range hs {
		if h.id == id {
			b.handlers[t] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

// SwapBuffers rotates back→front and clears the new back buffer.
// Called once at tick start.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front[:0]
}

// DispatchAll delivers all front-buffer events to their subscribed handlers and
// returns the number of events delivered. Events emitted by handlers land in
// the back buffer for the next tick.
func (b *Bus) DispatchAll() int {
	n := 0
	for _, ev := range b.front {
		b.mu.Lock()
		hs := append([]*handler(nil), b.handlers[ev.typ]...)
		b.mu.Unlock()
		for _, h := range hs {
			h.call(ev.event)
		}
		n++
	}
	b.front = b.front[:0]
	return n
}

// Pending is the number of events waiting in the back buffer.
func (b *Bus) Pending() int { return len(b.back) }
