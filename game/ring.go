package game

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultRingDepth is how many recent outcomes the in-memory history keeps.
const DefaultRingDepth = 10

// Ring is a fixed-capacity, newest-first store of recent outcomes. Pushing
// past capacity evicts the oldest entry.
type Ring struct {
	mu    sync.Mutex
	depth int
	items []Outcome
}

func NewRing(depth int) *Ring {
	if depth <= 0 {
		depth = DefaultRingDepth
	}
	return &Ring{depth: depth}
}

// Push inserts an outcome at the front, evicting the oldest entry when
// the ring is full.
func (r *Ring) Push(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]Outcome{o}, r.items...)
	if len(r.items) > r.depth {
		r.items = r.items[:r.depth]
	}
}

// Replace swaps the ring contents for the given newest-first entries,
// truncated to capacity.
func (r *Ring) Replace(items []Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(items)
	if n > r.depth {
		n = r.depth
	}
	r.items = append(r.items[:0:0], items[:n]...)
}

// UpgradePlaceholder replaces a placeholder entry with the real outcome
// for the same transaction. Reports whether an entry was upgraded.
func (r *Ring) UpgradePlaceholder(txHash common.Hash, real Outcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, it := range r.items {
		if it.TxHash == txHash && it.Source == SourcePlaceholder {
			r.items[i] = real
			return true
		}
	}
	return false
}

// Snapshot returns a newest-first copy of the ring contents.
func (r *Ring) Snapshot() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.items...)
}

// Len returns the number of stored outcomes.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Clear drops all stored outcomes. Called when session identity changes.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
