package mqtt

import "log"

// pending is a serialized message waiting for the connection to come back.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a bounded FIFO of messages waiting to go out. When full, the
// oldest message is dropped. Not safe for concurrent use.
type outbox[T any] struct {
	msgs    []T
	head    int
	count   int
	dropped int // since last drain
}

func newOutbox[T any](capacity int) *outbox[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox[T]{msgs: make([]T, capacity)}
}

func (o *outbox[T]) push(m T) {
	size := len(o.msgs)
	o.msgs[o.head] = m
	o.head = (o.head + 1) % size
	if o.count < size {
		o.count++
		return
	}
	if o.dropped == 0 {
		log.Printf("mqtt: outbox full (%d messages), dropping oldest", size)
	}
	o.dropped++
}

// drain returns the queued messages oldest first and empties the outbox.
func (o *outbox[T]) drain() []T {
	if o.count == 0 {
		return nil
	}
	size := len(o.msgs)
	out := make([]T, o.count)
	start := (o.head - o.count + size) % size
	for i := range out {
		out[i] = o.msgs[(start+i)%size]
	}
	if o.dropped > 0 {
		log.Printf("mqtt: %d queued messages were dropped", o.dropped)
	}
	o.head, o.count, o.dropped = 0, 0, 0
	return out
}

func (o *outbox[T]) len() int {
	return o.count
}
