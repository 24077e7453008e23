// Package approval implements the per-thread FIFO queue of pending
// human-in-the-loop actions.
package approval

import (
	"sync"

	"github.com/xiaot623/agui/internal/domain"
)

type threadQueue struct {
	mu      sync.Mutex
	actions []domain.PendingAction
}

// Queue holds pending actions per thread. The only dequeue operation is
// resolving the head: the protocol has no action-id targeting, so approval
// and rejection always act on index 0.
type Queue struct {
	mu      sync.Mutex
	threads map[string]*threadQueue
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{threads: make(map[string]*threadQueue)}
}

func (q *Queue) threadFor(threadID string) *threadQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	tq, ok := q.threads[threadID]
	if !ok {
		tq = &threadQueue{}
		q.threads[threadID] = tq
	}
	return tq
}

// Enqueue appends an action to the thread's queue tail.
func (q *Queue) Enqueue(threadID string, action domain.PendingAction) {
	tq := q.threadFor(threadID)
	tq.mu.Lock()
	defer tq.mu.Unlock()
	tq.actions = append(tq.actions, action)
}

// ResolveHead pops and returns the queue head. ok is false when the queue
// is empty.
func (q *Queue) ResolveHead(threadID string) (action domain.PendingAction, ok bool) {
	tq := q.threadFor(threadID)
	tq.mu.Lock()
	defer tq.mu.Unlock()
	if len(tq.actions) == 0 {
		return domain.PendingAction{}, false
	}
	action = tq.actions[0]
	tq.actions = tq.actions[1:]
	return action, true
}

// Pending returns a copy of the thread's queued actions in FIFO order.
func (q *Queue) Pending(threadID string) []domain.PendingAction {
	tq := q.threadFor(threadID)
	tq.mu.Lock()
	defer tq.mu.Unlock()
	out := make([]domain.PendingAction, len(tq.actions))
	copy(out, tq.actions)
	return out
}

// Len reports the number of actions queued for the thread.
func (q *Queue) Len(threadID string) int {
	tq := q.threadFor(threadID)
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return len(tq.actions)
}
