package schedule

import "sync"

// FailureStreak counts consecutive failures per key.
// It is safe for concurrent use.
type FailureStreak struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewFailureStreak creates an empty streak counter.
func NewFailureStreak() *FailureStreak {
	return &FailureStreak{counts: make(map[string]int)}
}

// Update resets the streak for key on success and extends it on failure.
// It returns the streak length after the update.
func (s *FailureStreak) Update(key string, ok bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok {
		delete(s.counts, key)
		return 0
	}
	s.counts[key]++
	return s.counts[key]
}
