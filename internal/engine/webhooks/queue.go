package webhooks

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultDebounce = 5 * time.Second

// FlushFunc consumes a completed batch. Called outside the queue lock.
type FlushFunc func(Batch)

// Queue buffers inbound webhooks and flushes them as a single batch after a
// quiet period with no new arrivals. One cancellable timer exists per queue;
// the generation counter keeps a timer that fired concurrently with a rearm
// from double-flushing.
type Queue struct {
	mu     sync.Mutex
	window time.Duration
	flush  FlushFunc
	items  []QueuedWebhook
	timer  *time.Timer
	gen    uint64
}

func NewQueue(window time.Duration, flush FlushFunc) *Queue {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Queue{window: window, flush: flush}
}

// Enqueue appends the webhook and restarts the debounce timer. The queue
// only flushes after a full quiet period, so worst-case latency is bounded
// only by how long arrivals keep coming.
func (q *Queue) Enqueue(webhook QueuedWebhook) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, webhook)
	if q.timer != nil {
		q.timer.Stop()
	}
	q.gen++
	gen := q.gen
	q.timer = time.AfterFunc(q.window, func() { q.fire(gen) })
}

// Size reports the count of buffered, not-yet-flushed webhooks.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop cancels any pending flush. Buffered webhooks stay in the queue and
// are picked up by the next Enqueue's timer.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.gen++
}

func (q *Queue) fire(gen uint64) {
	q.mu.Lock()
	if gen != q.gen || len(q.items) == 0 {
		// A newer enqueue rearmed the timer after this one fired.
		q.mu.Unlock()
		return
	}

	batch := Batch{
		Webhooks:    q.items,
		StartedAt:   q.items[0].Timestamp,
		CompletedAt: time.Now().UnixMilli(),
	}
	q.items = nil
	q.timer = nil
	flush := q.flush
	q.mu.Unlock()

	log.Debug().Int("webhooks", len(batch.Webhooks)).Msg("webhook queue flushed")
	if flush != nil {
		flush(batch)
	}
}
