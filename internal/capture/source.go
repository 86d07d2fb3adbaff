// Package capture provides the PCM sources feeding the recognizer: a PulseAudio
// microphone stream or a WAV file replayed in real time.
package capture

import (
	"context"
	"fmt"

	"ai-voice-command-service/internal/config"
)

// Source streams fixed-size 16-bit mono PCM chunks.
type Source interface {
	// Chunks is closed when the source ends.
	Chunks() <-chan []byte
	Close() error
}

// Open starts the source selected by cfg. A nil Source with a nil error means
// capture is disabled.
func Open(ctx context.Context, cfg config.AudioConfig, sampleRateHz int) (Source, error) {
	switch cfg.Source {
	case "pulse":
		p, err := StartPulse(ctx, cfg.Device, sampleRateHz)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "wav":
		w, err := OpenWAV(ctx, cfg.File, sampleRateHz)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}
}

// chunkBytes returns the size of a 20ms frame of 16-bit mono PCM.
func chunkBytes(sampleRateHz int) int {
	return sampleRateHz / 50 * 2
}

// chunker re-slices arbitrary PCM writes into fixed-size chunks.
type chunker struct {
	size    int
	pending []byte
}

// push appends buf and returns every complete chunk.
func (c *chunker) push(buf []byte) [][]byte {
	c.pending = append(c.pending, buf...)
	chunks := make([][]byte, 0, len(c.pending)/c.size)
	for len(c.pending) >= c.size {
		chunk := make([]byte, c.size)
		copy(chunk, c.pending[:c.size])
		c.pending = c.pending[c.size:]
		chunks = append(chunks, chunk)
	}
	return chunks
}

// flush returns the residual partial chunk, if any.
func (c *chunker) flush() []byte {
	if len(c.pending) == 0 {
		return nil
	}
	out := append([]byte(nil), c.pending...)
	c.pending = nil
	return out
}
