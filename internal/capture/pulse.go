package capture

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/rs/zerolog/log"
)

// Pulse streams PCM chunks from one PulseAudio source.
type Pulse struct {
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	chunker chunker
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// StartPulse opens a mono s16 record stream on device ("default" or empty
// selects the server default) at sampleRateHz.
func StartPulse(ctx context.Context, device string, sampleRateHz int) (*Pulse, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("ai-voice-command-service"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	var source *pulse.Source
	if device == "" || device == "default" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(device)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device, err)
	}

	p := &Pulse{
		client:  client,
		chunks:  make(chan []byte, 128),
		stopCh:  make(chan struct{}),
		chunker: chunker{size: chunkBytes(sampleRateHz)},
	}

	writer := pulse.NewWriter(writerFunc(p.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRateHz),
		pulse.RecordBufferFragmentSize(uint32(p.chunker.size)),
		pulse.RecordMediaName("voice commands"),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	p.stream = stream
	stream.Start()

	log.Info().Str("device", source.ID()).Int("sampleRateHz", sampleRateHz).Msg("Pulse capture started")

	go func() {
		select {
		case <-ctx.Done():
			_ = p.Close()
		case <-p.stopCh:
		}
	}()

	return p, nil
}

// Chunks returns the PCM stream.
func (p *Pulse) Chunks() <-chan []byte {
	return p.chunks
}

// BytesCaptured reports total bytes accepted from Pulse.
func (p *Pulse) BytesCaptured() int64 {
	return p.bytes.Load()
}

// Close halts the stream, flushes residual PCM and closes Chunks exactly once.
func (p *Pulse) Close() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
	}
	if p.client != nil {
		p.client.Close()
	}

	p.inflight.Wait()

	p.mu.Lock()
	residual := p.chunker.flush()
	p.mu.Unlock()

	if residual != nil {
		select {
		case p.chunks <- residual:
		default:
		}
	}

	close(p.chunks)
	log.Info().Int64("bytes", p.bytes.Load()).Msg("Pulse capture stopped")
	return nil
}

func (p *Pulse) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as stopped to avoid Add/Wait races.
	p.inflight.Add(1)
	chunks := p.chunker.push(buffer)
	p.mu.Unlock()
	defer p.inflight.Done()

	p.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		select {
		case <-p.stopCh:
			return 0, io.EOF
		case p.chunks <- chunk:
		}
	}
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
