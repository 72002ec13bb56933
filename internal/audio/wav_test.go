package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	samples := []float32{0, 0.5, -0.5, 1.5, -1.5}
	data, err := EncodeWAV(samples, 16000)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, uint32(len(data)-8), binary.LittleEndian.Uint32(data[4:8]), "riff size patched on close")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]), "mono")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]))
	assert.Equal(t, 44+len(samples)*2, len(data))
}

func TestEncodeWAVRejectsBadRate(t *testing.T) {
	t.Parallel()

	_, err := EncodeWAV([]float32{0}, 0)
	require.Error(t, err)
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.999}
	data, err := EncodeWAV(in, 8000)
	require.NoError(t, err)

	r, err := OpenWAV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, Format{SampleRate: 8000, Channels: 1}, r.Format())

	var got []float32
	block := make([]float32, 4)
	for {
		n, err := r.Read(block)
		got = append(got, block[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	require.Len(t, got, len(in))
	for i := range in {
		assert.InDelta(t, in[i], got[i], 1.0/16384, "sample %d", i)
	}
}

func TestOpenWAVInvalid(t *testing.T) {
	t.Parallel()

	_, err := OpenWAV(bytes.NewReader([]byte("definitely not a wav file at all, no riff header here")))
	require.Error(t, err)
}

func TestSeekableBufferOverwrite(t *testing.T) {
	t.Parallel()

	var s seekableBuffer
	_, _ = s.Write([]byte("hello world"))
	_, err := s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, _ = s.Write([]byte("HELLO"))
	assert.Equal(t, "HELLO world", string(s.Bytes()))

	_, err = s.Seek(-1, io.SeekStart)
	require.Error(t, err)
}

func TestBytesToFloat32(t *testing.T) {
	t.Parallel()

	in := []float32{0, 1, -1, 0.5}
	raw := append(Float32ToBytes(in), 0xff)
	assert.Equal(t, in, BytesToFloat32(nil, raw))

	dst := make([]float32, 0, 16)
	out := BytesToFloat32(dst, raw)
	assert.Equal(t, in, out)
}
