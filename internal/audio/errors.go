package audio

import "github.com/whispersubs/whispersubs/internal/errors"

var (
	// ErrInsufficientData is returned by Drain when fewer samples are
	// buffered than requested. The buffer is left untouched.
	ErrInsufficientData = errors.NewStd("insufficient data in buffer")

	// ErrNotReady is returned by ChunkScheduler.Extract below the threshold.
	ErrNotReady = errors.NewStd("chunk not ready")
)
