package simulator

import "time"

// QueueEntry is a launch request waiting for capacity
type QueueEntry struct {
	X          float64   `json:"x"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// WaitQueue is a bounded FIFO of pending launch requests
type WaitQueue struct {
	entries  []QueueEntry
	capacity int
}

// NewWaitQueue creates a queue holding at most capacity entries
func NewWaitQueue(capacity int) *WaitQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &WaitQueue{
		entries:  make([]QueueEntry, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an entry. Returns false (and leaves the queue untouched)
// when the queue is full.
func (q *WaitQueue) Push(entry QueueEntry) bool {
	if len(q.entries) >= q.capacity {
		return false
	}
	q.entries = append(q.entries, entry)
	return true
}

// Pop removes and returns the oldest entry
func (q *WaitQueue) Pop() (QueueEntry, bool) {
	if q.IsEmpty() {
		return QueueEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

// Peek returns the oldest entry without removing it
func (q *WaitQueue) Peek() (QueueEntry, bool) {
	if q.IsEmpty() {
		return QueueEntry{}, false
	}
	return q.entries[0], true
}

// Prune drops every entry at least maxAge old at now. Returns the number removed.
func (q *WaitQueue) Prune(now time.Time, maxAge time.Duration) int {
	kept := q.entries[:0]
	for _, e := range q.entries {
		if now.Sub(e.EnqueuedAt) < maxAge {
			kept = append(kept, e)
		}
	}
	removed := len(q.entries) - len(kept)
	clear(q.entries[len(kept):])
	q.entries = kept
	return removed
}

// SetCapacity changes the bound. Shrinking keeps the oldest entries and
// returns the newer ones that no longer fit.
func (q *WaitQueue) SetCapacity(capacity int) []QueueEntry {
	if capacity < 0 {
		capacity = 0
	}
	q.capacity = capacity
	if len(q.entries) <= capacity {
		return nil
	}
	dropped := make([]QueueEntry, len(q.entries)-capacity)
	copy(dropped, q.entries[capacity:])
	q.entries = q.entries[:capacity]
	return dropped
}

// IsEmpty returns true if the queue is empty
func (q *WaitQueue) IsEmpty() bool {
	return len(q.entries) == 0
}

// Len returns the number of queued entries
func (q *WaitQueue) Len() int {
	return len(q.entries)
}

// Cap returns the configured bound
func (q *WaitQueue) Cap() int {
	return q.capacity
}

// Clear removes all entries
func (q *WaitQueue) Clear() {
	q.entries = make([]QueueEntry, 0, q.capacity)
}

// Entries returns a copy of the queued entries, oldest first
func (q *WaitQueue) Entries() []QueueEntry {
	entries := make([]QueueEntry, len(q.entries))
	copy(entries, q.entries)
	return entries
}
