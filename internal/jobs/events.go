package jobs

import (
	"sync"
	"time"

	"speech-transcriber/internal/domain"
)

// EventType classifies notifications emitted during job execution.
type EventType string

const (
	EventTypeStage     EventType = "stage"
	EventTypeProgress  EventType = "progress"
	EventTypeCompleted EventType = "completed"
	EventTypeFailed    EventType = "failed"
	EventTypeCancelled EventType = "cancelled"
)

// Terminal reports whether an event type ends its job's event stream.
func (t EventType) Terminal() bool {
	switch t {
	case EventTypeCompleted, EventTypeFailed, EventTypeCancelled:
		return true
	default:
		return false
	}
}

// Event is a sequenced payload consumed by observers. Events are ordered per
// job; a terminal event is always the last one published for its job ID.
type Event struct {
	Seq       int64         `json:"seq"`
	Timestamp time.Time     `json:"timestamp"`
	JobID     string        `json:"jobId"`
	Type      EventType     `json:"type"`
	Stage     domain.Stage  `json:"stage,omitempty"`
	Progress  float64       `json:"progress,omitempty"`
	Text      string        `json:"text,omitempty"`
	Device    domain.Device `json:"device,omitempty"`
	Code      string        `json:"code,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// EventBus stores recent events for incremental polling and fans them out to
// channel subscribers. Publishing never blocks: a subscriber that stops
// draining its channel loses events rather than stalling the pipeline.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	nextSub   int
	maxEvents int
	events    []Event
	subs      map[int]chan Event
}

// subscriberBuffer is the per-subscriber channel depth before drops begin.
const subscriberBuffer = 64

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		subs:      make(map[int]chan Event),
	}
}

// Publish appends one event, assigns sequence and timestamp, and fans it out.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Slow subscribers drop events; Since remains lossless within
			// the buffer window.
		}
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Subscribe registers a channel observer. The returned cancel function must
// be called to release the subscription; the channel is closed by it.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
