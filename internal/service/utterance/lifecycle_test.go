package utterance

import (
	"sync"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("utt-1")

	if lc.State() != StateListening {
		t.Errorf("expected StateListening, got %v", lc.State())
	}
	if lc.UtteranceId() != "utt-1" {
		t.Errorf("expected utt-1, got %v", lc.UtteranceId())
	}
	if err := lc.Partial(); err != nil {
		t.Errorf("expected partials to be allowed, got %v", err)
	}
}

func TestLifecycle_FinalizeOnlyOnce(t *testing.T) {
	lc := NewLifecycle("utt-1")

	if err := lc.Finalize(); err != nil {
		t.Fatalf("first final: unexpected error: %v", err)
	}
	if lc.State() != StateFinalized {
		t.Errorf("expected StateFinalized, got %v", lc.State())
	}
	if err := lc.Finalize(); err != ErrAlreadyFinalized {
		t.Errorf("second final: expected ErrAlreadyFinalized, got %v", err)
	}
	if err := lc.Partial(); err != ErrPartialAfterFinalized {
		t.Errorf("expected ErrPartialAfterFinalized, got %v", err)
	}
}

func TestLifecycle_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*Lifecycle)
		wantState State
		wantFinal error
	}{
		{"close", func(l *Lifecycle) { l.Close() }, StateClosed, ErrUtteranceClosed},
		{"close idempotent", func(l *Lifecycle) { l.Close(); l.Close() }, StateClosed, ErrUtteranceClosed},
		{"drop", func(l *Lifecycle) { l.Drop() }, StateDropped, ErrUtteranceClosed},
		{"drop then close stays dropped", func(l *Lifecycle) { l.Drop(); l.Close() }, StateDropped, ErrUtteranceClosed},
		{"reset after drop", func(l *Lifecycle) { l.Drop(); l.Reset("utt-2") }, StateListening, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLifecycle("utt-1")
			tt.setup(lc)

			if lc.State() != tt.wantState {
				t.Errorf("expected %v, got %v", tt.wantState, lc.State())
			}
			if err := lc.Finalize(); err != tt.wantFinal {
				t.Errorf("Finalize: expected %v, got %v", tt.wantFinal, err)
			}
		})
	}
}

func TestLifecycle_DropReturnsFalseWhenTerminal(t *testing.T) {
	lc := NewLifecycle("utt-1")

	if !lc.Drop() {
		t.Error("expected first drop to succeed")
	}
	if lc.Drop() {
		t.Error("expected second drop to report already terminal")
	}
	if !lc.IsDropped() {
		t.Error("expected IsDropped to be true")
	}
}

func TestLifecycle_ConcurrentFinalize(t *testing.T) {
	lc := NewLifecycle("utt-1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lc.Finalize() == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one successful finalize, got %d", successes)
	}
}

func TestState_String(t *testing.T) {
	if StateFinalized.String() != "FINALIZED" {
		t.Errorf("unexpected string %s", StateFinalized)
	}
	if State(99).String() != "UNKNOWN(99)" {
		t.Errorf("unexpected string %s", State(99))
	}
}
