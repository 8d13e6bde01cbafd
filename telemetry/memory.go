package telemetry

import "sync"

// MemoryPublisher is a reference Publisher that keeps only the most
// recent Snapshot, for tests and simulation. Publish never fails.
type MemoryPublisher struct {
	mu   sync.Mutex
	last Snapshot
	seen bool
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(s Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = s
	p.seen = true
	return nil
}

// Last returns the most recently published Snapshot and whether any
// snapshot has been published yet.
func (p *MemoryPublisher) Last() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.seen
}
