// Package source delivers audio to the pipeline from a sound card or a WAV
// file. Sources only read audio: blocks are handed to the sink and never
// modified or returned.
package source

import (
	"github.com/whispersubs/whispersubs/internal/logger"
)

// Sink receives interleaved float32 blocks. Feed must not block for long;
// it is called from the audio thread.
type Sink interface {
	Feed(block []float32)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(block []float32)

// Feed calls f
func (f SinkFunc) Feed(block []float32) {
	f(block)
}

// GetLogger returns the source module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("source")
}
