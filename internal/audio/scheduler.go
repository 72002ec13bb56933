package audio

import (
	"fmt"
	"time"

	"github.com/whispersubs/whispersubs/internal/errors"
)

// ChunkPolicy selects how Extract cuts chunks from the buffer
type ChunkPolicy string

const (
	// PolicySliding takes the whole buffer and keeps its most recent
	// retain window for the next pass. Words crossing a boundary are seen
	// twice instead of being clipped.
	PolicySliding ChunkPolicy = "sliding"

	// PolicyWindowed takes exactly one threshold-sized window with no
	// overlap.
	PolicyWindowed ChunkPolicy = "windowed"
)

// ParsePolicy converts a config string to a ChunkPolicy
func ParsePolicy(s string) (ChunkPolicy, error) {
	switch p := ChunkPolicy(s); p {
	case PolicySliding, PolicyWindowed:
		return p, nil
	}
	return "", fmt.Errorf("unknown chunk policy %q", s)
}

// State is the scheduler readiness state
type State int

const (
	StateAccumulating State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SchedulerConfig configures a ChunkScheduler
type SchedulerConfig struct {
	Format         Format
	ChunkDuration  time.Duration
	RetainDuration time.Duration
	Policy         ChunkPolicy
}

// ChunkScheduler decides when the buffer holds enough audio for an
// inference pass and cuts the chunk. Readiness is derived from the buffer
// size on every call, so the scheduler itself holds no mutable state.
type ChunkScheduler struct {
	buf       *RingBuffer
	format    Format
	threshold int
	retain    int
	policy    ChunkPolicy
	now       func() time.Time
}

// NewChunkScheduler validates cfg against the buffer capacity
func NewChunkScheduler(buf *RingBuffer, cfg SchedulerConfig) (*ChunkScheduler, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, newConfigError(err)
	}
	if _, err := ParsePolicy(string(cfg.Policy)); err != nil {
		return nil, newConfigError(err)
	}

	threshold := cfg.Format.Samples(cfg.ChunkDuration)
	if threshold <= 0 {
		return nil, newConfigError(fmt.Errorf("chunk duration %v is shorter than one frame", cfg.ChunkDuration))
	}
	if threshold > buf.Capacity() {
		return nil, newConfigError(fmt.Errorf("chunk of %d samples exceeds buffer capacity %d", threshold, buf.Capacity()))
	}

	retain := 0
	if cfg.Policy == PolicySliding {
		retain = cfg.Format.Samples(cfg.RetainDuration)
		if retain < 0 || retain >= threshold {
			return nil, newConfigError(fmt.Errorf("retain duration %v must be shorter than chunk duration %v",
				cfg.RetainDuration, cfg.ChunkDuration))
		}
	}

	return &ChunkScheduler{
		buf:       buf,
		format:    cfg.Format,
		threshold: threshold,
		retain:    retain,
		policy:    cfg.Policy,
		now:       time.Now,
	}, nil
}

func newConfigError(err error) error {
	return errors.New(err).
		Component("audio").
		Category(errors.CategoryConfiguration).
		Context("operation", "new_chunk_scheduler").
		Build()
}

// Threshold returns the sample count that makes the scheduler ready
func (s *ChunkScheduler) Threshold() int {
	return s.threshold
}

// Retain returns the samples kept across passes by the sliding policy
func (s *ChunkScheduler) Retain() int {
	return s.retain
}

// State reports Ready iff the buffer holds at least Threshold samples
func (s *ChunkScheduler) State() State {
	if s.buf.Size() >= s.threshold {
		return StateReady
	}
	return StateAccumulating
}

// Ready is shorthand for State() == StateReady
func (s *ChunkScheduler) Ready() bool {
	return s.State() == StateReady
}

// Extract cuts the next chunk according to the policy. It returns
// ErrNotReady below the threshold. The size check and the drain happen
// under one buffer lock, so a concurrent producer cannot change the cut.
func (s *ChunkScheduler) Extract() (Chunk, error) {
	var (
		samples []float32
		err     error
	)

	switch s.policy {
	case PolicyWindowed:
		samples, err = s.buf.Drain(s.threshold)
	default:
		samples, err = s.buf.DrainRetaining(s.threshold, s.retain)
	}
	if errors.Is(err, ErrInsufficientData) {
		return Chunk{}, ErrNotReady
	}
	if err != nil {
		return Chunk{}, err
	}

	return Chunk{
		Samples:    samples,
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		CapturedAt: s.now(),
	}, nil
}
