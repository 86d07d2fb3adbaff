package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-voice-command-service/internal/config"
)

func buildWAV(t *testing.T, channels, bits uint16, rate uint32, pcm []byte, extra bool) []byte {
	t.Helper()
	var b bytes.Buffer
	w := func(v any) { require.NoError(t, binary.Write(&b, binary.LittleEndian, v)) }

	b.WriteString("RIFF")
	w(uint32(0)) // size is not checked
	b.WriteString("WAVE")
	if extra {
		b.WriteString("LIST")
		w(uint32(3))
		b.Write([]byte{1, 2, 3, 0}) // odd size is padded
	}
	b.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1))
	w(channels)
	w(rate)
	w(rate * uint32(channels) * uint32(bits) / 8)
	w(channels * bits / 8)
	w(bits)
	b.WriteString("data")
	w(uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

func TestReadWAVHeader(t *testing.T) {
	pcm := make([]byte, 100)
	format, size, err := ReadWAVHeader(bytes.NewReader(buildWAV(t, 1, 16, 16000, pcm, true)))
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), format.SampleRate)
	assert.Equal(t, uint16(1), format.Channels)
	assert.Equal(t, uint32(100), size)
}

func TestReadWAVHeader_Rejects(t *testing.T) {
	_, _, err := ReadWAVHeader(bytes.NewReader(buildWAV(t, 2, 16, 16000, nil, false)))
	assert.True(t, errors.Is(err, ErrNotPCM))

	_, _, err = ReadWAVHeader(bytes.NewReader([]byte("RIFX....WAVE")))
	assert.Error(t, err)

	_, _, err = ReadWAVHeader(bytes.NewReader([]byte("RIF")))
	assert.Error(t, err)
}

func TestNewWAV_ChunksData(t *testing.T) {
	// 16kHz -> 640 byte chunks; 1500 bytes -> 640, 640, 220
	pcm := bytes.Repeat([]byte{7}, 1500)
	w, err := NewWAV(context.Background(), bytes.NewReader(buildWAV(t, 1, 16, 16000, pcm, false)), 16000, false)
	require.NoError(t, err)
	defer w.Close()

	var sizes []int
	var total []byte
	for chunk := range w.Chunks() {
		sizes = append(sizes, len(chunk))
		total = append(total, chunk...)
	}
	assert.Equal(t, []int{640, 640, 220}, sizes)
	assert.Equal(t, pcm, total)
}

func TestWAV_CloseStopsReplay(t *testing.T) {
	pcm := make([]byte, 640*100)
	w, err := NewWAV(context.Background(), bytes.NewReader(buildWAV(t, 1, 16, 16000, pcm, false)), 16000, true)
	require.NoError(t, err)

	<-w.Chunks()
	require.NoError(t, w.Close())
	for range w.Chunks() {
	}
}

func TestChunker(t *testing.T) {
	c := chunker{size: 4}
	assert.Empty(t, c.push([]byte{1, 2, 3}))
	chunks := c.push([]byte{4, 5, 6, 7, 8, 9})
	assert.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}, chunks)
	assert.Equal(t, []byte{9}, c.flush())
	assert.Nil(t, c.flush())
}

func TestChunkBytes(t *testing.T) {
	assert.Equal(t, 640, chunkBytes(16000))
	assert.Equal(t, 320, chunkBytes(8000))
}

func TestOpen_None(t *testing.T) {
	src, err := Open(context.Background(), config.AudioConfig{Source: "none"}, 16000)
	require.NoError(t, err)
	assert.Nil(t, src)

	_, err = Open(context.Background(), config.AudioConfig{Source: "alsa"}, 16000)
	assert.Error(t, err)
}
