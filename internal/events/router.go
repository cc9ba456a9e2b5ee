package events

import (
	"log/slog"
	"sync"
	"time"
)

func NewRouter() *Router {
	return &Router{
		readers:   make(map[EventType][]chan<- Event),
		readersMu: &sync.RWMutex{},
	}
}

// Router delivers activity events to the channels registered for their type. Delivery never
// blocks the sender: events for a listener that is not keeping up are dropped with a warning.
type Router struct {
	readersAny []chan<- Event
	readers    map[EventType][]chan<- Event
	readersMu  *sync.RWMutex
}

// ListenFor registers a channel to start receiving events for the specified event.
func (l *Router) ListenFor(eventType EventType, handler chan<- Event) {
	l.readersMu.Lock()
	defer l.readersMu.Unlock()

	// Any case is handled more generally
	if eventType == Any {
		l.readersAny = append(l.readersAny, handler)

		return
	}

	l.readers[eventType] = append(l.readers[eventType], handler)
}

// Send delivers the event to every matching listener.
func (l *Router) Send(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.readersMu.RLock()
	defer l.readersMu.RUnlock()

	for _, handler := range l.readers[event.Type] {
		deliver(handler, event)
	}

	for _, handler := range l.readersAny {
		deliver(handler, event)
	}
}

func deliver(handler chan<- Event, event Event) {
	select {
	case handler <- event:
	default:
		slog.Warn("Dropped activity event, listener is full",
			slog.String("type", event.Type.String()), slog.Int64("uid", event.UID))
	}
}
