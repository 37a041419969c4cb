package service

import (
	"sync"
)

// PhotoEvent announces a change in a photo's download state.
type PhotoEvent struct {
	PinID   int64
	ImageID string
	State   PhotoState
	Error   string
}

const subscriberBuffer = 64

// Events fans photo state changes out to per-pin subscribers. Slow
// subscribers lose events rather than stall downloads.
type Events struct {
	mu   sync.Mutex
	subs map[int64]map[chan PhotoEvent]struct{}
}

// NewEvents creates an empty broker.
func NewEvents() *Events {
	return &Events{subs: make(map[int64]map[chan PhotoEvent]struct{})}
}

// Subscribe registers for events of one pin. Call the returned func to
// unsubscribe; the channel is closed afterwards.
func (e *Events) Subscribe(pinID int64) (<-chan PhotoEvent, func()) {
	ch := make(chan PhotoEvent, subscriberBuffer)

	e.mu.Lock()
	if e.subs[pinID] == nil {
		e.subs[pinID] = make(map[chan PhotoEvent]struct{})
	}
	e.subs[pinID][ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs[pinID], ch)
			if len(e.subs[pinID]) == 0 {
				delete(e.subs, pinID)
			}
			e.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to the pin's subscribers without blocking.
func (e *Events) Publish(ev PhotoEvent) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs[ev.PinID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
