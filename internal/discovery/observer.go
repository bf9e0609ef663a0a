package discovery

import "sync/atomic"

// Observer is notified after a sighting has been persisted. It runs on the
// capture goroutine and must not block.
type Observer interface {
	OnDiscovery(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) OnDiscovery(e Event) { f(e) }

// ChannelObserver hands events to another goroutine over a bounded
// channel. When the channel is full the event is dropped and counted.
type ChannelObserver struct {
	ch      chan Event
	dropped atomic.Int64
	onDrop  func()
}

// NewChannelObserver creates an observer buffering up to size events.
func NewChannelObserver(size int) *ChannelObserver {
	if size < 1 {
		size = 1
	}
	return &ChannelObserver{ch: make(chan Event, size)}
}

// OnDrop registers a hook called for every dropped event.
func (c *ChannelObserver) OnDrop(fn func()) *ChannelObserver {
	c.onDrop = fn
	return c
}

// OnDiscovery queues e, or drops it if the buffer is full.
func (c *ChannelObserver) OnDiscovery(e Event) {
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
		if c.onDrop != nil {
			c.onDrop()
		}
	}
}

// Events returns the channel events are delivered on.
func (c *ChannelObserver) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were dropped so far.
func (c *ChannelObserver) Dropped() int64 {
	return c.dropped.Load()
}
