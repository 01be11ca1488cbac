package outbox

import (
	"errors"
	"sync"

	"github.com/rickgao/resilient-ws/internal/connection"
)

// Sender is satisfied by *connection.Manager.
type Sender interface {
	Send(message string) error
}

// Outbox is a thread-safe FIFO ring buffer of pending messages that
// doubles its capacity when it reaches 70% full. With a non-zero limit the
// oldest message is dropped to make room for a new one.
type Outbox struct {
	flushMu sync.Mutex // Serializes Flush calls

	mu       sync.Mutex
	buf      []string
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	limit    int

	// Stats
	totalQueued  int64
	totalFlushed int64
	totalDropped int64
	resizeCount  int
}

// New creates an Outbox with the given initial capacity and limit
// (0 = unbounded).
func New(initialCapacity, limit int) *Outbox {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Outbox{
		buf:      make([]string, initialCapacity),
		capacity: initialCapacity,
		limit:    limit,
	}
}

// Push queues msg. It returns false if an older message was dropped to
// make room.
func (o *Outbox) Push(msg string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	kept := true
	if o.limit > 0 && o.count >= o.limit {
		o.popLocked()
		o.totalDropped++
		kept = false
	}

	if o.nearlyFullLocked() {
		o.grow()
	}

	o.buf[o.tail] = msg
	o.tail = (o.tail + 1) % o.capacity
	o.count++
	o.totalQueued++
	return kept
}

// Flush sends queued messages in order until the queue is empty or a send
// fails. A message whose send fails stays at the head of the queue. It
// returns the number of messages sent.
func (o *Outbox) Flush(s Sender) (int, error) {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	sent := 0
	for {
		msg, ok := o.peek()
		if !ok {
			return sent, nil
		}
		if err := s.Send(msg); err != nil {
			return sent, err
		}
		o.mu.Lock()
		o.popLocked()
		o.totalFlushed++
		o.mu.Unlock()
		sent++
	}
}

// SendOrQueue sends msg immediately when possible and queues it when the
// connection is not OPEN. Pending messages are flushed first so ordering
// is preserved. Errors other than an invalid state are returned.
func (o *Outbox) SendOrQueue(s Sender, msg string) (queued bool, err error) {
	if o.Len() > 0 {
		if _, err := o.Flush(s); err != nil && !errors.Is(err, connection.ErrInvalidState) {
			return false, err
		}
	}
	if o.Len() == 0 {
		err := s.Send(msg)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, connection.ErrInvalidState) {
			return false, err
		}
	}
	o.Push(msg)

	// The connection may have opened, and flushed an empty queue, since
	// the send above failed.
	if _, err := o.Flush(s); err != nil && !errors.Is(err, connection.ErrInvalidState) {
		return true, err
	}
	return true, nil
}

// Len returns the number of queued messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// Stats returns outbox statistics.
func (o *Outbox) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{
		Count:        o.count,
		Capacity:     o.capacity,
		TotalQueued:  o.totalQueued,
		TotalFlushed: o.totalFlushed,
		TotalDropped: o.totalDropped,
		ResizeCount:  o.resizeCount,
	}
}

// Stats contains outbox statistics.
type Stats struct {
	Count        int
	Capacity     int
	TotalQueued  int64
	TotalFlushed int64
	TotalDropped int64
	ResizeCount  int
}

func (o *Outbox) peek() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.count == 0 {
		return "", false
	}
	return o.buf[o.head], true
}

// popLocked removes the head item. Must be called with lock held.
func (o *Outbox) popLocked() {
	if o.count == 0 {
		return
	}
	o.buf[o.head] = ""
	o.head = (o.head + 1) % o.capacity
	o.count--
}

// nearlyFullLocked reports whether one more message would bring the ring
// to 70% of its capacity.
func (o *Outbox) nearlyFullLocked() bool {
	limit := max(o.capacity*70/100, 1)
	return o.count+1 >= limit
}

// grow moves the pending messages, oldest first, into a ring twice the
// size. Must be called with o.mu held.
func (o *Outbox) grow() {
	buf := make([]string, o.capacity*2)
	for i := 0; i < o.count; i++ {
		buf[i] = o.buf[(o.head+i)%o.capacity]
	}

	o.buf = buf
	o.capacity = len(buf)
	o.head = 0
	o.tail = o.count
	o.resizeCount++
}
