package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotPCM is returned for WAV files that are not 16-bit mono PCM.
var ErrNotPCM = errors.New("wav: only 16-bit mono PCM supported")

// WAVFormat is the fmt chunk of a WAV file.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ReadWAVHeader validates the RIFF header and advances r to the start of the
// data chunk. It returns the format and the data length in bytes.
func ReadWAVHeader(r io.Reader) (WAVFormat, uint32, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return WAVFormat{}, 0, fmt.Errorf("wav: read header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WAVFormat{}, 0, errors.New("wav: not a RIFF/WAVE file")
	}

	var (
		format  WAVFormat
		haveFmt bool
		chunk   [8]byte
	)
	for {
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return WAVFormat{}, 0, fmt.Errorf("wav: read chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return WAVFormat{}, 0, fmt.Errorf("wav: read fmt chunk: %w", err)
			}
			if size < 16 {
				return WAVFormat{}, 0, errors.New("wav: short fmt chunk")
			}
			format = WAVFormat{
				AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				Channels:      binary.LittleEndian.Uint16(body[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAVFormat{}, 0, errors.New("wav: data chunk before fmt chunk")
			}
			if format.AudioFormat != 1 || format.Channels != 1 || format.BitsPerSample != 16 {
				return format, 0, ErrNotPCM
			}
			return format, size, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return WAVFormat{}, 0, fmt.Errorf("wav: skip %q chunk: %w", id, err)
			}
		}
	}
}

// WAV replays the data chunk of a WAV file as 20ms chunks in real time.
type WAV struct {
	closer io.Closer
	chunks chan []byte
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenWAV opens path and starts replaying it. A sample rate different from
// sampleRateHz is logged, not converted.
func OpenWAV(ctx context.Context, path string, sampleRateHz int) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	w, err := NewWAV(ctx, f, sampleRateHz, true)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWAV replays r. With pace false chunks are emitted as fast as they are consumed.
func NewWAV(ctx context.Context, r io.Reader, sampleRateHz int, pace bool) (*WAV, error) {
	format, size, err := ReadWAVHeader(r)
	if err != nil {
		return nil, err
	}
	if int(format.SampleRate) != sampleRateHz {
		log.Warn().
			Uint32("fileSampleRateHz", format.SampleRate).
			Int("sampleRateHz", sampleRateHz).
			Msg("WAV sample rate differs from recognizer sample rate")
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &WAV{
		chunks: make(chan []byte, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.replay(ctx, io.LimitReader(r, int64(size)), chunkBytes(int(format.SampleRate)), pace)
	return w, nil
}

func (w *WAV) replay(ctx context.Context, r io.Reader, size int, pace bool) {
	defer close(w.done)
	defer close(w.chunks)

	var ticker *time.Ticker
	if pace {
		ticker = time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
	}

	var total int64
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			total += int64(n)
			select {
			case w.chunks <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				log.Error().Err(err).Msg("WAV replay failed")
			}
			log.Info().Int64("bytes", total).Msg("WAV replay finished")
			return
		}
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Chunks returns the PCM stream.
func (w *WAV) Chunks() <-chan []byte {
	return w.chunks
}

// Close stops the replay and releases the file.
func (w *WAV) Close() error {
	w.cancel()
	<-w.done
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
