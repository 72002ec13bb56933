package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// bytesPerSample is the stored width of one float32 sample
const bytesPerSample = 4

// RingBuffer is a bounded FIFO of float32 samples.
//
// When an append would exceed the capacity the oldest samples are dropped
// first, so the buffer always holds the most recent suffix of what was
// appended. Dropping old audio keeps memory bounded at the cost of gaps in
// the transcript when the engine falls behind.
//
// Every method runs in a single critical section. The real-time producer
// holds the lock only for a memcpy-sized write.
type RingBuffer struct {
	mu      sync.Mutex
	rb      *ringbuffer.RingBuffer
	max     int
	scratch []byte
}

// NewRingBuffer creates a buffer holding at most maxSamples samples
func NewRingBuffer(maxSamples int) *RingBuffer {
	if maxSamples < 1 {
		maxSamples = 1
	}
	return &RingBuffer{
		rb:  ringbuffer.New(maxSamples * bytesPerSample),
		max: maxSamples,
	}
}

// Capacity returns the maximum number of samples held
func (b *RingBuffer) Capacity() int {
	return b.max
}

// Size returns the number of buffered samples
func (b *RingBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sizeLocked()
}

// Append adds samples in arrival order and returns how many of the oldest
// samples were dropped to make room. Input longer than the capacity keeps
// only its tail.
func (b *RingBuffer) Append(samples []float32) int {
	if len(samples) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := 0
	if len(samples) > b.max {
		evicted = len(samples) - b.max
		samples = samples[evicted:]
	}

	if need := len(samples) - b.rb.Free()/bytesPerSample; need > 0 {
		evicted += b.discardLocked(need)
	}

	b.writeLocked(samples)
	return evicted
}

// Drain removes and returns the oldest n samples. It fails with
// ErrInsufficientData when fewer than n are buffered.
func (b *RingBuffer) Drain(n int) ([]float32, error) {
	if n <= 0 {
		return []float32{}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sizeLocked() < n {
		return nil, ErrInsufficientData
	}

	out := make([]float32, n)
	b.readLocked(out)
	return out, nil
}

// DrainRetaining removes and returns the whole buffer, then puts back its
// most recent retain samples so they lead the next window. It fails with
// ErrInsufficientData when fewer than minSamples are buffered.
func (b *RingBuffer) DrainRetaining(minSamples, retain int) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.sizeLocked()
	if size < minSamples || size == 0 {
		return nil, ErrInsufficientData
	}

	out := make([]float32, size)
	b.readLocked(out)

	if retain > 0 {
		b.writeLocked(out[size-min(retain, size):])
	}
	return out, nil
}

// EvictOldest drops the oldest samples until at most targetMax remain and
// returns how many were dropped.
func (b *RingBuffer) EvictOldest(targetMax int) int {
	if targetMax < 0 {
		targetMax = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	excess := b.sizeLocked() - targetMax
	if excess <= 0 {
		return 0
	}
	return b.discardLocked(excess)
}

// Snapshot returns a copy of the buffered samples without consuming them
func (b *RingBuffer) Snapshot() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.scratch = b.rb.Bytes(b.scratch)
	out := make([]float32, len(b.scratch)/bytesPerSample)
	decodeSamples(out, b.scratch)
	return out
}

// Reset discards all buffered samples
func (b *RingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rb.Reset()
}

func (b *RingBuffer) sizeLocked() int {
	return b.rb.Length() / bytesPerSample
}

func (b *RingBuffer) bytes(n int) []byte {
	if cap(b.scratch) < n {
		b.scratch = make([]byte, n)
	}
	return b.scratch[:n]
}

// writeLocked encodes samples as little-endian float32. The caller makes
// sure there is room.
func (b *RingBuffer) writeLocked(samples []float32) {
	buf := b.bytes(len(samples) * bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(s))
	}
	// cannot fail short: room was made by the caller
	_, _ = b.rb.Write(buf)
}

func (b *RingBuffer) readLocked(out []float32) {
	buf := b.bytes(len(out) * bytesPerSample)
	n, _ := b.rb.Read(buf)
	decodeSamples(out, buf[:n])
}

func decodeSamples(out []float32, buf []byte) {
	for i := range len(buf) / bytesPerSample {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerSample:]))
	}
}

// discardLocked drops up to n of the oldest samples
func (b *RingBuffer) discardLocked(n int) int {
	n = min(n, b.sizeLocked())
	if n == 0 {
		return 0
	}
	buf := b.bytes(n * bytesPerSample)
	read, _ := b.rb.Read(buf)
	return read / bytesPerSample
}
