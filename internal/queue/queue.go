// Package queue holds the per-animal waiting list of interested
// adopters, ordered by compatibility score (highest first) with
// strict FIFO among equal scores.
package queue

import (
	"container/heap"
	"time"
)

// EmptyQueueError is returned when popping an empty waiting list.
type EmptyQueueError struct{}

func (e *EmptyQueueError) Error() string { return "waiting queue is empty" }

// Entry is one adopter waiting on an animal. Arrival is a
// monotonically increasing sequence used as the tie-break; ties on
// score pop in arrival order, never arbitrarily.
type Entry struct {
	Adopter    string `json:"adopter"`
	Score      int    `json:"score"`
	Arrival    int64  `json:"arrival"`
	EnqueuedAt string `json:"enqueued_at" format:"date-time"`
}

// WaitingQueue is a max-priority queue over (score desc, arrival asc).
type WaitingQueue struct {
	h       entryHeap
	nextSeq int64
}

// New returns an empty queue.
func New() *WaitingQueue {
	return &WaitingQueue{nextSeq: 1}
}

// Rehydrate rebuilds a queue from persisted entries, preserving
// their original arrival order.
func Rehydrate(entries []Entry) *WaitingQueue {
	q := New()
	for _, e := range entries {
		q.Push(e)
	}
	return q
}

// Enqueue adds an adopter with the given score, stamping the arrival
// sequence and time. O(log n).
func (q *WaitingQueue) Enqueue(adopter string, score int, now time.Time) Entry {
	e := Entry{
		Adopter:    adopter,
		Score:      score,
		Arrival:    q.nextSeq,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
	}
	q.Push(e)
	return e
}

// Push inserts an entry with an already-assigned arrival.
func (q *WaitingQueue) Push(e Entry) {
	if e.Arrival >= q.nextSeq {
		q.nextSeq = e.Arrival + 1
	}
	heap.Push(&q.h, e)
}

// Pop removes and returns the highest-priority entry.
func (q *WaitingQueue) Pop() (Entry, error) {
	if q.h.Len() == 0 {
		return Entry{}, &EmptyQueueError{}
	}
	return heap.Pop(&q.h).(Entry), nil
}

// Peek returns the highest-priority entry without removing it. The
// second result is false when the queue is empty; an empty queue is
// not an error here.
func (q *WaitingQueue) Peek() (Entry, bool) {
	if q.h.Len() == 0 {
		return Entry{}, false
	}
	return q.h[0], true
}

// Len returns the number of waiting adopters.
func (q *WaitingQueue) Len() int { return q.h.Len() }

// Entries returns the waiting adopters in priority order without
// disturbing the queue.
func (q *WaitingQueue) Entries() []Entry {
	tmp := make(entryHeap, len(q.h))
	copy(tmp, q.h)
	out := make([]Entry, 0, len(tmp))
	for tmp.Len() > 0 {
		out = append(out, heap.Pop(&tmp).(Entry))
	}
	return out
}

type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }

// Less expresses (score desc, arrival asc) directly; no negated
// scores needed.
func (h entryHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].Arrival < h[j].Arrival
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
