package link

import (
	"sync"

	"github.com/skobkin/groundlink/internal/connectors"
)

const DefaultQueueSize = 1024

// Queue is a bounded FIFO of decoded messages. When full, Push evicts the
// oldest entry and counts it as dropped, so the producer never blocks.
type Queue struct {
	mu      sync.Mutex
	items   []connectors.InboundMessage
	head    int
	size    int
	dropped uint64
	ready   chan struct{}
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}

	return &Queue{
		items: make([]connectors.InboundMessage, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends msg and reports whether an older message was evicted.
func (q *Queue) Push(msg connectors.InboundMessage) bool {
	q.mu.Lock()
	evicted := false
	if q.size == len(q.items) {
		q.items[q.head] = connectors.InboundMessage{}
		q.head = (q.head + 1) % len(q.items)
		q.size--
		q.dropped++
		evicted = true
	}
	q.items[(q.head+q.size)%len(q.items)] = msg
	q.size++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return evicted
}

// Pop removes the oldest message.
func (q *Queue) Pop() (connectors.InboundMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return connectors.InboundMessage{}, false
	}
	msg := q.items[q.head]
	q.items[q.head] = connectors.InboundMessage{}
	q.head = (q.head + 1) % len(q.items)
	q.size--

	return msg, true
}

// Drain appends every queued message to dst in arrival order and empties the
// queue.
func (q *Queue) Drain(dst []connectors.InboundMessage) []connectors.InboundMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size > 0 {
		dst = append(dst, q.items[q.head])
		q.items[q.head] = connectors.InboundMessage{}
		q.head = (q.head + 1) % len(q.items)
		q.size--
	}

	return dst
}

// Ready is signalled after pushes; a receive does not guarantee a message.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

func (q *Queue) Cap() int {
	return len(q.items)
}

func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropped
}

// Reset empties the queue and clears the drop counter.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.items)
	q.head = 0
	q.size = 0
	q.dropped = 0
}
