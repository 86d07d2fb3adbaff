package utterance

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle state of an utterance.
type State int

const (
	// StateListening - audio is flowing, interim transcripts may arrive.
	StateListening State = iota
	// StateFinalized - the final transcript was handed to the pipeline.
	StateFinalized
	// StateClosed - the utterance ended normally.
	StateClosed
	// StateDropped - abandoned without a final transcript.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateFinalized:
		return "FINALIZED"
	case StateClosed:
		return "CLOSED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsTerminal returns true for CLOSED and DROPPED.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateDropped
}

// Errors for invalid transitions.
var (
	ErrUtteranceClosed       = errors.New("utterance is closed")
	ErrAlreadyFinalized      = errors.New("final transcript already emitted for this utterance")
	ErrPartialAfterFinalized = errors.New("interim transcript after final")
)

// Lifecycle guards the one-final-per-utterance rule. Safe for concurrent use.
//
//	LISTENING ──Finalize()──> FINALIZED ──Close()──> CLOSED
//	    │
//	    └──Drop()──> DROPPED
//
// Reset starts the next utterance from LISTENING.
type Lifecycle struct {
	mu          sync.RWMutex
	utteranceId string
	state       State
}

// NewLifecycle creates a lifecycle in LISTENING state.
func NewLifecycle(utteranceId string) *Lifecycle {
	return &Lifecycle{utteranceId: utteranceId, state: StateListening}
}

// UtteranceId returns the current utterance ID.
func (l *Lifecycle) UtteranceId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utteranceId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsDropped reports whether the current utterance was dropped.
func (l *Lifecycle) IsDropped() bool {
	return l.State() == StateDropped
}

// Partial validates an interim transcript.
func (l *Lifecycle) Partial() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case StateListening:
		return nil
	case StateFinalized:
		return ErrPartialAfterFinalized
	default:
		return ErrUtteranceClosed
	}
}

// Finalize moves LISTENING to FINALIZED. Any other state is an error and the
// final transcript must be discarded.
func (l *Lifecycle) Finalize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateListening:
		l.state = StateFinalized
		return nil
	case StateFinalized:
		return ErrAlreadyFinalized
	default:
		return ErrUtteranceClosed
	}
}

// Close ends the utterance. Idempotent; a dropped utterance stays dropped.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateDropped {
		l.state = StateClosed
	}
}

// Drop abandons the utterance. Returns false if it was already terminal.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}

// Reset starts a new utterance in LISTENING state.
func (l *Lifecycle) Reset(utteranceId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.utteranceId = utteranceId
	l.state = StateListening
}
