// Package dispatch decouples webhook intake from event handling. Events for
// the same chat are processed strictly in order; a semaphore bounds how many
// chats are handled at once.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/workbase/internal/types"
)

// laneBuffer is each chat lane's capacity. A full lane rejects the event
// rather than blocking the webhook handler.
const laneBuffer = 100

// Handler processes one inbound event to completion.
type Handler func(ctx context.Context, ev *types.InboundEvent) error

// Queue fans inbound events out to per-chat FIFO lanes. Each chat gets its
// own channel and goroutine so a multi-turn dialog never sees its messages
// reordered, while the semaphore caps total concurrency across chats.
type Queue struct {
	lanes     map[int64]chan *types.InboundEvent
	semaphore *semaphore.Weighted
	handler   Handler
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue allowing up to maxConcurrent events in flight
// across all chats.
func NewQueue(maxConcurrent int64, handler Handler) *Queue {
	return &Queue{
		lanes:     make(map[int64]chan *types.InboundEvent),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		handler:   handler,
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// handlers to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.lanes = make(map[int64]chan *types.InboundEvent)
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds an event to its chat's lane, creating the lane (and its
// goroutine) on first use. Returns an error when the lane is full.
func (q *Queue) Enqueue(ev *types.InboundEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[ev.ChatID]
	if !exists {
		lane = make(chan *types.InboundEvent, laneBuffer)
		q.lanes[ev.ChatID] = lane
		q.wg.Add(1)
		go q.processLane(ev.ChatID, lane)
	}

	select {
	case lane <- ev:
		return nil
	default:
		return fmt.Errorf("queue full for chat %d", ev.ChatID)
	}
}

// processLane drains one chat's lane, acquiring a semaphore slot before
// invoking the handler synchronously. FIFO within the chat, bounded
// parallelism across chats.
func (q *Queue) processLane(chatID int64, lane chan *types.InboundEvent) {
	defer q.wg.Done()
	for {
		select {
		case ev, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			q.active.Add(1)
			if err := q.handler(q.ctx, ev); err != nil {
				slog.Error("event handling failed", "chat_id", chatID, "error", err)
			}
			q.active.Add(-1)
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until no events are being processed or the timeout
// expires. Returns true when idle.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
