package audio

import (
	"fmt"
	"time"
)

// Format describes interleaved float32 audio
type Format struct {
	SampleRate int
	Channels   int
}

// Validate reports unusable formats
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	return nil
}

// Samples returns the interleaved sample count covering d, rounded down to
// whole frames.
func (f Format) Samples(d time.Duration) int {
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * f.Channels
}

// Duration returns the playback time of n interleaved samples
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := int64(n / f.Channels)
	return time.Duration(frames * int64(time.Second) / int64(f.SampleRate))
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz/%dch", f.SampleRate, f.Channels)
}

// Chunk is an immutable snapshot of buffered audio taken for one inference
// pass.
type Chunk struct {
	Samples    []float32
	SampleRate int
	Channels   int
	CapturedAt time.Time
}

// Format returns the chunk's capture format
func (c *Chunk) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Frames returns the number of whole frames in the chunk
func (c *Chunk) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the chunk's playback time
func (c *Chunk) Duration() time.Duration {
	return c.Format().Duration(len(c.Samples))
}
