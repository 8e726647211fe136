package progress

import "sync"

// Batch tracks a long-running batch operation for poll-based status
// endpoints. All methods are safe for concurrent use.
type Batch struct {
	mu        sync.Mutex
	total     int
	completed int
	current   string
	running   bool
}

// Snapshot is a point-in-time view of a batch.
type Snapshot struct {
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Current   string `json:"current,omitempty"`
	Running   bool   `json:"running"`
}

// Begin resets the batch to a fresh run of total items. It reports false
// when a run is already in flight.
func (b *Batch) Begin(total int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return false
	}
	b.total = total
	b.completed = 0
	b.current = ""
	b.running = true
	return true
}

// Step records one completed item and what is being worked on next.
func (b *Batch) Step(current string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completed++
	b.current = current
}

// End marks the run finished.
func (b *Batch) End() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	b.current = ""
}

// Status returns the current snapshot.
func (b *Batch) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Total:     b.total,
		Completed: b.completed,
		Current:   b.current,
		Running:   b.running,
	}
}
