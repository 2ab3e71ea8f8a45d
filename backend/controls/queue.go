package controls

import (
	"context"
	"log"
	"sync"

	"github.com/rezon/mediasession/backend/playback"
)

// actionQueue decouples producers (D-Bus callbacks, IPC handlers) from the
// consumer of C(). Producers never block. Actions are delivered in order,
// each at most once, and none are coalesced.
type actionQueue struct {
	mutex      sync.Mutex
	queue      []playback.Action
	available  *sync.Cond
	nextChan   chan playback.Action
	maxPending int
	dropped    int
	closed     bool
}

func newActionQueue(ctx context.Context, maxPending int) *actionQueue {
	q := &actionQueue{
		nextChan:   make(chan playback.Action),
		maxPending: maxPending,
	}
	q.available = sync.NewCond(&q.mutex)
	go q.chanWriter(ctx)
	go func() {
		<-ctx.Done()
		q.mutex.Lock()
		q.closed = true
		q.mutex.Unlock()
		q.available.Broadcast()
	}()
	return q
}

func (q *actionQueue) C() <-chan playback.Action {
	return q.nextChan
}

func (q *actionQueue) add(a playback.Action) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return
	}
	if q.maxPending > 0 && len(q.queue) >= q.maxPending {
		log.Printf("control queue full, dropping undelivered %s", q.queue[0].Name())
		q.queue = q.queue[1:]
		q.dropped++
	}
	q.queue = append(q.queue, a)
	q.available.Signal()
}

func (q *actionQueue) pending() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.queue)
}

func (q *actionQueue) droppedCount() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.dropped
}

func (q *actionQueue) chanWriter(ctx context.Context) {
	for {
		q.mutex.Lock()
		for len(q.queue) == 0 && !q.closed {
			q.available.Wait()
		}
		if q.closed {
			q.mutex.Unlock()
			return
		}
		a := q.queue[0]
		q.queue = q.queue[1:]
		q.mutex.Unlock()

		select {
		case q.nextChan <- a:
		case <-ctx.Done():
			return
		}
	}
}
