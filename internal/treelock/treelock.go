// Package treelock serializes transfer sessions over a tree pair so that
// at most one session moves data between a given local tree and remote
// tree at a time, while unrelated tree pairs proceed concurrently.
package treelock

import "sync"

// Pair identifies an ordered (local, remote) tree relationship.
type Pair struct {
	LocalTreeID  string
	RemoteTreeID string
}

// Set is a process-wide non-blocking mutex set keyed by tree pair. The
// zero value is ready to use.
type Set struct {
	mu   sync.Mutex
	held map[Pair]struct{}
}

// TryLock attempts to acquire pair and reports whether it succeeded.
// It never blocks: if pair is already held, it returns false immediately.
func (s *Set) TryLock(pair Pair) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = make(map[Pair]struct{})
	}
	if _, taken := s.held[pair]; taken {
		return false
	}
	s.held[pair] = struct{}{}
	return true
}

// Unlock releases pair. Unlocking a pair that is not held is a no-op.
func (s *Set) Unlock(pair Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, pair)
}

// Clear releases every held pair at once, resetting the Set to empty.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = nil
}

// Len reports how many pairs are currently held, for diagnostics.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}
