package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispersubs/whispersubs/internal/audio"
	"github.com/whispersubs/whispersubs/internal/errors"
)

func writeTestWAV(t *testing.T, samples []float32, rate int) string {
	t.Helper()

	data, err := audio.EncodeWAV(samples, rate)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "speech.wav")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

type collectSink struct {
	mu     sync.Mutex
	blocks int
	data   []float32
}

func (s *collectSink) Feed(block []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks++
	s.data = append(s.data, block...)
}

func TestWAVFileFastPlayback(t *testing.T) {
	t.Parallel()

	in := make([]float32, 2500)
	for i := range in {
		in[i] = float32(i%100) / 200
	}
	path := writeTestWAV(t, in, 8000)

	w, err := OpenWAVFile(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, audio.Format{SampleRate: 8000, Channels: 1}, w.Format())

	var sink collectSink
	require.NoError(t, w.Play(t.Context(), &sink, PlayOptions{BlockFrames: 1000, Fast: true}))

	assert.Equal(t, 3, sink.blocks)
	require.Len(t, sink.data, len(in))
	for i := range in {
		assert.InDelta(t, in[i], sink.data[i], 1.0/16384)
	}
}

func TestWAVFilePacedPlayback(t *testing.T) {
	t.Parallel()

	// 0.2 s of audio in 50 ms blocks
	path := writeTestWAV(t, make([]float32, 1600), 8000)
	w, err := OpenWAVFile(path)
	require.NoError(t, err)
	defer w.Close()

	var sink collectSink
	start := time.Now()
	require.NoError(t, w.Play(t.Context(), &sink, PlayOptions{BlockFrames: 400}))

	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Len(t, sink.data, 1600)
}

func TestWAVFilePlaybackStopsOnCancel(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, make([]float32, 80000), 8000)
	w, err := OpenWAVFile(path)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()

	var sink collectSink
	require.NoError(t, w.Play(ctx, &sink, PlayOptions{BlockFrames: 800}))
	assert.Less(t, len(sink.data), 80000)
}

func TestOpenWAVFileErrors(t *testing.T) {
	t.Parallel()

	_, err := OpenWAVFile(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	bogus := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(bogus, []byte("this is not audio, just some text padding it out"), 0o600))
	_, err = OpenWAVFile(bogus)
	require.Error(t, err)
}

func TestMatchDevice(t *testing.T) {
	t.Parallel()

	devices := []DeviceInfo{
		{Index: 0, Name: "HDA Intel PCH: ALC257 Analog", ID: "hw:0,0"},
		{Index: 1, Name: "USB Audio Device", ID: "hw:1,0", IsDefault: true},
		{Index: 2, Name: "Loopback", ID: "hw:2,0"},
	}

	tests := []struct {
		want    string
		index   int
		wantErr bool
	}{
		{"", 1, false},
		{"sysdefault", 1, false},
		{"hw:2,0", 2, false},
		{"USB", 1, false},
		{"ALC257", 0, false},
		{"bluetooth", 0, true},
	}

	for _, tt := range tests {
		idx, err := matchDevice(devices, tt.want)
		if tt.wantErr {
			require.Error(t, err, tt.want)
			assert.True(t, errors.IsCategory(err, errors.CategoryAudioSource))
			continue
		}
		require.NoError(t, err, tt.want)
		assert.Equal(t, tt.index, idx, tt.want)
	}

	idx, err := matchDevice(devices[:1], "")
	require.NoError(t, err)
	assert.Equal(t, -1, idx, "no default device lets the backend choose")
}

func TestNewCaptureValidatesFormat(t *testing.T) {
	t.Parallel()

	_, err := NewCapture(CaptureConfig{Format: audio.Format{SampleRate: 48000}}, SinkFunc(func([]float32) {}))
	require.Error(t, err)

	c, err := NewCapture(CaptureConfig{Format: audio.Format{SampleRate: 48000, Channels: 1}}, SinkFunc(func([]float32) {}))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), c.Frames())
}
