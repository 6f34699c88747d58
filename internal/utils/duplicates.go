package utils

// SeenSet tracks normalized strings already emitted, so merged result
// lists from several indexes stay distinct.
type SeenSet struct {
	seen map[string]struct{}
}

// NewSeenSet creates an empty set sized for n entries.
func NewSeenSet(n int) *SeenSet {
	if n < 0 {
		n = 0
	}
	return &SeenSet{seen: make(map[string]struct{}, n)}
}

// Add reports whether v was new. Returns false on duplicates.
func (s *SeenSet) Add(v string) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	return true
}

// Len returns the number of distinct entries seen.
func (s *SeenSet) Len() int {
	return len(s.seen)
}
