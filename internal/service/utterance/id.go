// Package utterance tracks the lifecycle of one spoken utterance inside a recognizer session.
package utterance

import (
	"fmt"
	"sync/atomic"
)

// Sequence hands out utterance IDs for one capture session.
type Sequence struct {
	sessionId string
	counter   atomic.Uint64
}

// NewSequence creates a sequence scoped to sessionId.
func NewSequence(sessionId string) *Sequence {
	return &Sequence{sessionId: sessionId}
}

// SessionId returns the capture session the sequence belongs to.
func (s *Sequence) SessionId() string {
	return s.sessionId
}

// Next returns the next utterance ID, "<session>-utt-<n>" with n starting at 1.
func (s *Sequence) Next() string {
	n := s.counter.Add(1)
	return fmt.Sprintf("%s-utt-%d", s.sessionId, n)
}

// Count returns how many IDs have been issued.
func (s *Sequence) Count() uint64 {
	return s.counter.Load()
}
