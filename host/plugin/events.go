package plugin

import (
	"cmp"
	"slices"
	"sort"
)

// MaxEventSize is the largest payload an Event can carry inline.
const MaxEventSize = 8

// Event is a timed control message (for example a MIDI message) delivered
// alongside an audio block.
type Event struct {
	// SampleOffset is the position of the event inside the block.
	SampleOffset int
	Size         int
	Data         [MaxEventSize]byte
}

// NewEvent builds an Event from a payload, truncated to MaxEventSize bytes.
func NewEvent(offset int, payload ...byte) Event {
	e := Event{SampleOffset: offset}
	e.Size = copy(e.Data[:], payload)

	return e
}

// Bytes returns the used part of the payload.
func (e *Event) Bytes() []byte {
	return e.Data[:e.Size]
}

// EventBuffer holds the events of one block, ordered by sample offset.
// It is not safe for concurrent use; the host fills it and hands it to the
// chain on the real-time goroutine.
type EventBuffer struct {
	events []Event
	sorted bool
}

// NewEventBuffer returns an empty buffer with room for capacity events.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events: make([]Event, 0, max(capacity, 0)),
		sorted: true,
	}
}

// Add appends an event. It allocates only when the capacity is exceeded.
func (b *EventBuffer) Add(e Event) {
	if n := len(b.events); n > 0 && b.events[n-1].SampleOffset > e.SampleOffset {
		b.sorted = false
	}

	b.events = append(b.events, e)
}

// Len returns the number of events.
func (b *EventBuffer) Len() int {
	if b == nil {
		return 0
	}

	return len(b.events)
}

// Events returns the events ordered by sample offset.
// Events with equal offsets keep their insertion order.
func (b *EventBuffer) Events() []Event {
	if b == nil {
		return nil
	}

	if !b.sorted {
		slices.SortStableFunc(b.events, func(x, y Event) int {
			return cmp.Compare(x.SampleOffset, y.SampleOffset)
		})
		b.sorted = true
	}

	return b.events
}

// InRange returns the events with start <= SampleOffset < end.
// The result aliases the buffer.
func (b *EventBuffer) InRange(start, end int) []Event {
	events := b.Events()

	lo := sort.Search(len(events), func(i int) bool {
		return events[i].SampleOffset >= start
	})
	hi := sort.Search(len(events), func(i int) bool {
		return events[i].SampleOffset >= end
	})

	if lo >= hi {
		return nil
	}

	return events[lo:hi]
}

// Clear removes all events and keeps the capacity.
func (b *EventBuffer) Clear() {
	b.events = b.events[:0]
	b.sorted = true
}
