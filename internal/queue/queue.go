package queue

import (
	"slices"
	"sync"
)

// Queue is the ordered list of pending actions. It is safe to enqueue from
// the foreground while the worker is dequeuing.
type Queue struct {
	mu    sync.Mutex
	items []Action
	ready chan struct{}
}

func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Ready is signalled whenever an action is added.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Enqueue appends a unless an action of the same kind is already queued.
func (q *Queue) Enqueue(a Action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.indexLocked(a.Kind) >= 0 {
		return false
	}
	q.items = append(q.items, a)
	q.signal()
	return true
}

// EnqueueUrgent places a at the front. An already queued action of the same
// kind is moved to the front instead of being duplicated.
func (q *Queue) EnqueueUrgent(a Action) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.indexLocked(a.Kind); i >= 0 {
		a = q.items[i]
		q.items = slices.Delete(q.items, i, i+1)
	}
	q.items = slices.Insert(q.items, 0, a)
	q.signal()
}

// Requeue puts a back at the front after a failed attempt. It is a no-op when
// a newer action of the same kind was queued meanwhile.
func (q *Queue) Requeue(a Action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.indexLocked(a.Kind) >= 0 {
		return false
	}
	q.items = slices.Insert(q.items, 0, a)
	q.signal()
	return true
}

// Peek returns the front action without removing it.
func (q *Queue) Peek() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Action{}, false
	}
	return q.items[0], true
}

// Dequeue pops the front action.
func (q *Queue) Dequeue() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Action{}, false
	}
	a := q.items[0]
	q.items = q.items[1:]
	return a, true
}

// Remove drops the queued action of kind k, if any.
func (q *Queue) Remove(k Kind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexLocked(k)
	if i < 0 {
		return false
	}
	q.items = slices.Delete(q.items, i, i+1)
	return true
}

// Has reports whether an action of kind k is queued.
func (q *Queue) Has(k Kind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexLocked(k) >= 0
}

func (q *Queue) Items() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Action, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

func (q *Queue) indexLocked(k Kind) int {
	return slices.IndexFunc(q.items, func(a Action) bool { return a.Kind == k })
}
