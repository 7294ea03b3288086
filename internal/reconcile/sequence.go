package reconcile

import (
	"fmt"

	"github.com/google/uuid"
)

// Sequence hands out client message ids. Peek lets a caller learn an id
// before it is consumed, e.g. to correlate a request sent ahead of the
// optimistic message it creates.
type Sequence struct {
	prefix string
	n      uint64
}

// NewSequence returns a sequence whose ids start with prefix. An empty prefix
// is replaced by a random one so ids do not collide across sessions.
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = uuid.NewString()
	}
	return &Sequence{prefix: prefix}
}

// Next consumes and returns the next id.
func (s *Sequence) Next() string {
	s.n++
	return s.format(s.n)
}

// Peek returns the id Next would return after offset-1 further calls;
// Peek(1) is the next id. It never advances the sequence.
func (s *Sequence) Peek(offset int) string {
	if offset < 1 {
		offset = 1
	}
	return s.format(s.n + uint64(offset))
}

func (s *Sequence) format(n uint64) string {
	return fmt.Sprintf("%s-%d", s.prefix, n)
}
