package mqtt

import (
	"log"
	"sync"

	"github.com/sweeney/pothole-guard/internal/logic"
)

// DefaultQueueSize is how many alerts AsyncPublisher holds before it starts
// dropping the oldest.
const DefaultQueueSize = 32

// AsyncPublisher hands alerts to a background goroutine so Publish never
// waits on the broker. When the queue is full the oldest alert is dropped.
// System events go straight to the wrapped publisher.
type AsyncPublisher struct {
	inner Publisher

	mu  sync.Mutex
	box *outbox[logic.Alert]

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewAsyncPublisher starts the publishing goroutine. Close stops it.
func NewAsyncPublisher(inner Publisher, size int) *AsyncPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &AsyncPublisher{
		inner: inner,
		box:   newOutbox[logic.Alert](size),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish queues the alert and returns immediately.
func (a *AsyncPublisher) Publish(alert logic.Alert) error {
	a.mu.Lock()
	a.box.push(alert)
	a.mu.Unlock()
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// PublishSystem passes the event to the wrapped publisher.
func (a *AsyncPublisher) PublishSystem(event SystemEvent) error {
	return a.inner.PublishSystem(event)
}

// Pending returns how many alerts are waiting to be sent.
func (a *AsyncPublisher) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.box.len()
}

// Close sends what is still queued, then stops the goroutine. The wrapped
// publisher stays open; its owner closes it.
func (a *AsyncPublisher) Close() error {
	a.once.Do(func() { close(a.stop) })
	<-a.done
	return nil
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for {
		select {
		case <-a.wake:
			a.flush()
		case <-a.stop:
			a.flush()
			return
		}
	}
}

func (a *AsyncPublisher) flush() {
	a.mu.Lock()
	batch := a.box.drain()
	a.mu.Unlock()
	for _, alert := range batch {
		if err := a.inner.Publish(alert); err != nil {
			log.Printf("mqtt: alert %s: %v", alert.ID, err)
		}
	}
}
